package in

import "errors"

var errBadSigningMaterial = errors.New("in: signing material must be exactly 64 bytes")
