package lapdm

import "errors"

// Programming/argument errors returned directly to the caller (§7 "Programming
// errors"). Protocol violations by the peer never surface here -- those are
// reported upward as an rsl.ErrorInd primitive instead, see pkg/rsl.
var (
	ErrIllegalArgument  = errors.New("lapdm: illegal argument")
	ErrUnknownSAPI      = errors.New("lapdm: unknown or unallocated SAPI")
	ErrShortFrame       = errors.New("lapdm: message too short for its header")
	ErrUnsupportedFmt   = errors.New("lapdm: unsupported or unimplemented frame format")
	ErrBadDiscriminator = errors.New("lapdm: unknown RSL message discriminator")
	ErrNotEstablished   = errors.New("lapdm: datalink is not in multiple-frame-established state")
	ErrBusy             = errors.New("lapdm: datalink is busy with a pending release")
)
