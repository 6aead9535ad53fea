package es

import "log/slog"

// Playhead is the 0-based position of an event within its aggregate stream.
// On an aggregate it is the number of events applied so far, which is also
// the playhead the next recorded event receives.
type Playhead uint64

func (p Playhead) Uint64() uint64                          { return uint64(p) }
func (p Playhead) Next() Playhead                          { return p + 1 }
func (p Playhead) SlogAttr() slog.Attr                     { return newSlogPlayheadAttr("playhead", p) }
func (p Playhead) SlogAttrWithKey(key string) slog.Attr    { return newSlogPlayheadAttr(key, p) }
func newSlogPlayheadAttr(key string, p Playhead) slog.Attr { return slog.Uint64(key, uint64(p)) }
