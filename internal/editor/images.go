package editor

import (
	"github.com/nathsir75/mmap/internal/scene"
)

// ImageLoader resolves an image source into pixel dimensions. Load must not
// block: implementations decode asynchronously and invoke done from the
// goroutine that owns the editor. done receives the natural width and
// height, or ok=false when the source cannot be decoded.
type ImageLoader interface {
	Load(src string, done func(w, h float64, ok bool))
}

// ReviveImages walks freshly restored items and re-triggers image decoding
// for every image node. Serialized pages keep only the data URI; the decoded
// pixels have to be rebuilt after every load or history replay.
func (e *Editor) ReviveImages(items []*scene.Item) {
	for _, it := range items {
		e.reviveItem(it)
	}
}

func (e *Editor) reviveItem(it *scene.Item) {
	if it.Kind == scene.KindImage && it.Src != "" && !it.ImageReady {
		item := it
		e.loader.Load(item.Src, func(w, h float64, ok bool) {
			if !ok {
				return
			}
			item.ImageReady = true
			if item.Width == 0 || item.Height == 0 {
				item.Width = w
				item.Height = h
			}
		})
	}
	for _, ch := range it.Children {
		e.reviveItem(ch)
	}
}
