package entity

// Kind identifies one of the record kinds the integrity protocol covers.
// Each kind carries its own field set but shares the same normalize,
// canonicalize, hash, anchor, and verify pipeline.
type Kind string

const (
	KindBatch        Kind = "batch"
	KindCheckpoint   Kind = "checkpoint"
	KindPackage      Kind = "package"
	KindProduct      Kind = "product"
	KindShipment     Kind = "shipment"
	KindSegment      Kind = "segment"
	KindTelemetry    Kind = "telemetry"
	KindBreach       Kind = "breach"
	KindRegistration Kind = "registration"
)

// Kinds lists every supported entity kind in declaration order.
var Kinds = []Kind{
	KindBatch,
	KindCheckpoint,
	KindPackage,
	KindProduct,
	KindShipment,
	KindSegment,
	KindTelemetry,
	KindBreach,
	KindRegistration,
}

// Valid reports whether k names a supported entity kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}
