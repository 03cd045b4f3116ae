package model

// Window is one top-level surface and the node tree it owns.
type Window struct {
	X         int32  `yaml:"x"                json:"x"`
	Y         int32  `yaml:"y"                json:"y"`
	Width     int32  `yaml:"w"                json:"w"`
	Height    int32  `yaml:"h"                json:"h"`
	Title     string `yaml:"title,omitempty"  json:"title,omitempty"`
	DisplayID int32  `yaml:"display"          json:"display"`
	Root      *Node  `yaml:"root"             json:"root"`
}

// Bounds returns [x, y, width, height].
func (w *Window) Bounds() [4]int {
	return [4]int{int(w.X), int(w.Y), int(w.Width), int(w.Height)}
}
