package protocol

// Stream protocol identifiers negotiated by the transport
const (
	SessionProtocol = "/effect/session/" + Version
	EffectProtocol  = "/effect/protocol/" + Version
)
