package control

import "time"

// Wire shapes for the coordinator's status tree and notification payloads.
// Entities copy these into their own fields; the raw structs never leak past
// the package boundary except for the small exported descriptors below.

// Host describes the machine a client runs on.
type Host struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	MAC  string `json:"mac"`
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

type statusEnvelope struct {
	Server *serverStatus `json:"server"`
}

type serverStatus struct {
	Server  serverInfo     `json:"server"`
	Groups  []groupStatus  `json:"groups"`
	Streams []streamStatus `json:"streams"`
}

type serverInfo struct {
	Snapserver versionInfo `json:"snapserver"`
	Host       Host        `json:"host"`
}

type versionInfo struct {
	Version string `json:"version"`
}

type groupStatus struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Muted    bool           `json:"muted"`
	StreamID string         `json:"stream_id"`
	Clients  []clientStatus `json:"clients"`
}

type clientStatus struct {
	ID         string       `json:"id"`
	Connected  bool         `json:"connected"`
	Host       Host         `json:"host"`
	Snapclient versionInfo  `json:"snapclient"`
	Config     clientConfig `json:"config"`
	LastSeen   lastSeen     `json:"lastSeen"`
}

type clientConfig struct {
	Name    string       `json:"name"`
	Latency int          `json:"latency"`
	Volume  volumeStatus `json:"volume"`
}

type volumeStatus struct {
	Percent int  `json:"percent"`
	Muted   bool `json:"muted"`
}

type lastSeen struct {
	Sec  int64 `json:"sec"`
	Usec int64 `json:"usec"`
}

// Time converts the coordinator's sec/usec pair.
func (l lastSeen) Time() time.Time {
	if l.Sec == 0 && l.Usec == 0 {
		return time.Time{}
	}
	return time.Unix(l.Sec, l.Usec*1000)
}

type streamStatus struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	URI        streamURI      `json:"uri"`
	Meta       map[string]any `json:"meta"`
	Properties map[string]any `json:"properties"`
}

type streamURI struct {
	Raw      string            `json:"raw"`
	Scheme   string            `json:"scheme"`
	Host     string            `json:"host"`
	Path     string            `json:"path"`
	Fragment string            `json:"fragment"`
	Query    map[string]string `json:"query"`
}

// Notification payloads.

type idPayload struct {
	ID string `json:"id"`
}

type clientConnectPayload struct {
	ID     string       `json:"id"`
	Client clientStatus `json:"client"`
}

type clientVolumePayload struct {
	ID     string       `json:"id"`
	Volume volumeStatus `json:"volume"`
}

type clientNamePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type clientLatencyPayload struct {
	ID      string `json:"id"`
	Latency int    `json:"latency"`
}

type groupMutePayload struct {
	ID   string `json:"id"`
	Mute bool   `json:"mute"`
}

type groupStreamPayload struct {
	ID       string `json:"id"`
	StreamID string `json:"stream_id"`
}

type groupNamePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type streamUpdatePayload struct {
	ID     string       `json:"id"`
	Stream streamStatus `json:"stream"`
}

type streamMetaPayload struct {
	ID   string         `json:"id"`
	Meta map[string]any `json:"meta"`
}

type streamPropertiesPayload struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}
