//go:build !maybenot_legacy_v1

package machine

import "fmt"

// parseLegacyV1 is a stub used when the engine is built without the
// maybenot_legacy_v1 tag (the default). The v1 wire format is deprecated;
// hosts that still need to read machines serialized by the pre-counter,
// pre-UpdateTimer era must opt in explicitly.
func parseLegacyV1(body []byte) (*Machine, error) {
	return nil, parseErr(ParseUnsupportedVersion, fmt.Errorf("legacy v1 format support was not compiled in (build with -tags maybenot_legacy_v1)"))
}
