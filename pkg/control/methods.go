package control

// RPC methods consumed by the client.
const (
	MethodServerGetStatus     = "Server.GetStatus"
	MethodServerGetRPCVersion = "Server.GetRPCVersion"
	MethodServerDeleteClient  = "Server.DeleteClient"

	MethodClientGetStatus  = "Client.GetStatus"
	MethodClientSetName    = "Client.SetName"
	MethodClientSetLatency = "Client.SetLatency"
	MethodClientSetVolume  = "Client.SetVolume"

	MethodGroupGetStatus  = "Group.GetStatus"
	MethodGroupSetMute    = "Group.SetMute"
	MethodGroupSetStream  = "Group.SetStream"
	MethodGroupSetClients = "Group.SetClients"
	MethodGroupSetName    = "Group.SetName"

	MethodStreamControl      = "Stream.Control"
	MethodStreamSetMeta      = "Stream.SetMeta" // deprecated
	MethodStreamSetProperty  = "Stream.SetProperty"
	MethodStreamAddStream    = "Stream.AddStream"
	MethodStreamRemoveStream = "Stream.RemoveStream"
)

// Notifications pushed by the coordinator.
const (
	NotifyServerUpdate = "Server.OnUpdate"

	NotifyClientConnect        = "Client.OnConnect"
	NotifyClientDisconnect     = "Client.OnDisconnect"
	NotifyClientVolumeChanged  = "Client.OnVolumeChanged"
	NotifyClientLatencyChanged = "Client.OnLatencyChanged"
	NotifyClientNameChanged    = "Client.OnNameChanged"

	NotifyGroupMute          = "Group.OnMute"
	NotifyGroupStreamChanged = "Group.OnStreamChanged"
	NotifyGroupNameChanged   = "Group.OnNameChanged"

	NotifyStreamUpdate     = "Stream.OnUpdate"
	NotifyStreamMetadata   = "Stream.OnMetadata" // deprecated
	NotifyStreamProperties = "Stream.OnProperties"
)

// methodVersions maps gated methods to the minimum coordinator version that
// supports them. Invoking a gated method against an older coordinator fails
// locally before any network I/O.
var methodVersions = map[string]string{
	MethodGroupSetName:       "0.16.0",
	MethodStreamControl:      "0.26.0",
	MethodStreamSetProperty:  "0.26.0",
	MethodStreamAddStream:    "0.16.0",
	MethodStreamRemoveStream: "0.16.0",
}
