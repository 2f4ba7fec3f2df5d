package config

import "errors"

// ErrRollback is returned (wrapped) by Load when the new file failed to
// parse in full; the loader's current record is left exactly as it was.
var ErrRollback = errors.New("config: load failed, previous configuration retained")
