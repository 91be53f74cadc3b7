package edoc

type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindGroup:
		return "group"
	default:
		return "invalid"
	}
}

func (k Kind) jsonType() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindGroup:
		return "object"
	default:
		panic("invalid kind")
	}
}
