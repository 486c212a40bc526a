package models

import "time"

// LiveTick is one sample of the simulated live-detection feed shown during local playback.
// It is decorative and never reconciled with backend output.
type LiveTick struct {
	Seq    int       `json:"seq"`
	Labels []string  `json:"labels"`
	At     time.Time `json:"at"`
}
