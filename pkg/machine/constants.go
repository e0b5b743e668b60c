package machine

// Version is the current canonical-string format version byte. Bumped
// whenever the wire schema changes in a way that is not backward
// compatible with older parsers.
const Version byte = 0x02

// VersionLegacyV1 is the deprecated wire format version, parseable only
// when built with the maybenot_legacy_v1 build tag.
const VersionLegacyV1 byte = 0x01

// StateMax is the hard cap on the number of states a single machine may
// have.
const StateMax = 100_000

// MaxDecompressedSize bounds the size, in bytes, that a canonical string's
// deflate-compressed payload may expand to. This defends the parser
// against maliciously crafted strings that decompress to something far
// larger than their encoded size ("zip bomb" style inputs). 16 MiB
// comfortably holds StateMax states of realistic size while remaining a
// small, fixed budget for any host embedding the engine.
const MaxDecompressedSize = 16 << 20
