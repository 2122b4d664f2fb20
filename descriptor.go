package tapip

// WireKind enumerates the primitive wire types a FieldDescriptor field can
// hold, per spec §3's frame descriptor model (u8, u16, u32, raw-bytes).
type WireKind uint8

const (
	KindU8 WireKind = iota
	KindU16
	KindU32
	KindRaw
)

func (k WireKind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Field describes one named, fixed-offset field of a wire header: its byte
// width and wire kind. Width is advisory for KindRaw fields whose actual
// length is derived from the surrounding frame (see FrameDescriptor.DataWidth).
type Field struct {
	Name  string
	Width int
	Kind  WireKind
}

// Section is an ordered, immutable list of fields belonging to one part of a
// frame (header, data or footer). The order a Section is built with is the
// order fields are serialized in and never changes thereafter (spec §3
// invariant).
type Section []Field

// Width returns the total byte width of a section whose fields are all
// fixed-size (header and footer sections).
func (s Section) Width() int {
	n := 0
	for _, f := range s {
		n += f.Width
	}
	return n
}

// FrameDescriptor is the const, statically-verifiable schema for one wire
// protocol, replacing the source's dynamic string-keyed field dictionary
// (spec §9 DESIGN NOTE). It names the header and footer sections; the data
// section of every protocol in this core that carries one is a single opaque
// raw-bytes field, so it is stored as one Field rather than a Section —
// callers needing the data field's descriptor use Data. ARPv4Descriptor
// folds its address tuple into the header and leaves Data unset.
type FrameDescriptor struct {
	Name   string
	Header Section
	Data   Field
	Footer Section
}

// DataWidth returns the width of the data section given the total length of
// a packed frame, by subtracting header and footer widths from it (spec
// §4.1: "the data section's width derived from remaining bytes").
func (d FrameDescriptor) DataWidth(totalLen int) int {
	w := totalLen - d.Header.Width() - d.Footer.Width()
	if w < 0 {
		return 0
	}
	return w
}

// HeaderWidth returns the fixed byte width of the header section.
func (d FrameDescriptor) HeaderWidth() int { return d.Header.Width() }

// FooterWidth returns the fixed byte width of the footer section.
func (d FrameDescriptor) FooterWidth() int { return d.Footer.Width() }

// Descriptors for every wire protocol this stack encodes/decodes. These are
// consulted by tests and diagnostics (Field/Width introspection); the
// hot-path Decode*/Put methods in headers.go use direct fixed-offset
// encoding for speed and do not walk these descriptors at runtime.
var (
	EthernetDescriptor = FrameDescriptor{
		Name: "Ethernet",
		Header: Section{
			{"Destination", 6, KindRaw},
			{"Source", 6, KindRaw},
			{"EtherType", 2, KindU16},
		},
		Data: Field{"Payload", 0, KindRaw},
	}

	ARPv4Descriptor = FrameDescriptor{
		Name: "ARPv4",
		Header: Section{
			{"HardwareType", 2, KindU16},
			{"ProtoType", 2, KindU16},
			{"HardwareLength", 1, KindU8},
			{"ProtoLength", 1, KindU8},
			{"Operation", 2, KindU16},
			{"HardwareSender", 6, KindRaw},
			{"ProtoSender", 4, KindRaw},
			{"HardwareTarget", 6, KindRaw},
			{"ProtoTarget", 4, KindRaw},
		},
	}

	IPv4Descriptor = FrameDescriptor{
		Name: "IPv4",
		Header: Section{
			{"VersionAndIHL", 1, KindU8},
			{"TOS", 1, KindU8},
			{"TotalLength", 2, KindU16},
			{"ID", 2, KindU16},
			{"FlagsAndFragOffset", 2, KindU16},
			{"TTL", 1, KindU8},
			{"Protocol", 1, KindU8},
			{"Checksum", 2, KindU16},
			{"Source", 4, KindRaw},
			{"Destination", 4, KindRaw},
		},
		Data: Field{"Payload", 0, KindRaw},
	}

	ICMPDescriptor = FrameDescriptor{
		Name: "ICMP",
		Header: Section{
			{"Type", 1, KindU8},
			{"Code", 1, KindU8},
			{"Checksum", 2, KindU16},
		},
		Data: Field{"Payload", 0, KindRaw},
	}

	UDPDescriptor = FrameDescriptor{
		Name: "UDP",
		Header: Section{
			{"SourcePort", 2, KindU16},
			{"DestinationPort", 2, KindU16},
			{"Length", 2, KindU16},
			{"Checksum", 2, KindU16},
		},
		Data: Field{"Payload", 0, KindRaw},
	}

	TCPDescriptor = FrameDescriptor{
		Name: "TCP",
		Header: Section{
			{"SourcePort", 2, KindU16},
			{"DestinationPort", 2, KindU16},
			{"Seq", 4, KindU32},
			{"Ack", 4, KindU32},
			{"OffsetAndFlags", 2, KindU16},
			{"WindowSize", 2, KindU16},
			{"Checksum", 2, KindU16},
			{"UrgentPtr", 2, KindU16},
		},
		Data: Field{"Payload", 0, KindRaw},
	}
)
