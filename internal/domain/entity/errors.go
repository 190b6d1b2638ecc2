package entity

import "errors"

// Stage-level failures. A per-frame inference or parse problem inside step
// synthesis is a skip, not one of these; these abort the remaining pipeline.
var (
	ErrNoVideoFound      = errors.New("no suitable video found")
	ErrAcquisitionFailed = errors.New("video download failed")
	ErrSamplingFailed    = errors.New("frame sampling failed")
	ErrSynthesisFailed   = errors.New("step synthesis failed")
)
