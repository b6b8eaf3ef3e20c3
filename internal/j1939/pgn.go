package j1939

// Parameter group numbers used by the Part 1 procedure.
const (
	PGNRequest        uint32 = 0xEA00 // 59904
	PGNAcknowledgment uint32 = 0xE800 // 59392
	PGNComponentID    uint32 = 0xFEEB // 65259
	PGNDM1            uint32 = 0xFECA // 65226
	PGNDM2            uint32 = 0xFECB // 65227
	PGNDM5            uint32 = 0xFECE // 65230
	PGNDM6            uint32 = 0xFECF // 65231
	PGNDM7            uint32 = 0xE300 // 58112
	PGNDM11           uint32 = 0xFED3 // 65235
	PGNDM12           uint32 = 0xFED4 // 65236
	PGNDM20           uint32 = 0xC200 // 49664
	PGNDM21           uint32 = 0xC100 // 49408
	PGNDM23           uint32 = 0xFDB5 // 64949
	PGNDM24           uint32 = 0xFDB6 // 64950
	PGNDM25           uint32 = 0xFDB7 // 64951
	PGNDM26           uint32 = 0xFDB8 // 64952
	PGNDM27           uint32 = 0xFD82 // 64898
	PGNDM28           uint32 = 0xFD80 // 64896
	PGNDM29           uint32 = 0x9E00 // 40448
	PGNDM30           uint32 = 0xA400 // 41984
	PGNDM31           uint32 = 0xA300 // 41728
)

const (
	GlobalAddress       = 0xFF
	NullAddress         = 0xFE
	ServiceToolAddress  = 0xF9
	ServiceToolAddress2 = 0xFA
)

const (
	notAvailable8  uint8  = 0xFF
	notAvailable16 uint16 = 0xFFFF
)
