package sequencer

import "errors"

// errStillLocked is a private retry signal for waitUnlocked's backoff
// loop; it never escapes the package.
var errStillLocked = errors.New("sequencer: key still locked")
