// Package gallery holds the lightbox navigator and the shared photo feed.
package gallery

// SwipeThreshold is the horizontal distance in pixels a touch must travel to
// count as a swipe.
const SwipeThreshold = 50

// Image is one entry the lightbox can show
type Image struct {
	Src     string `json:"src"`
	Caption string `json:"caption"`
}

// Navigator tracks the open image in a sequence. Each viewer owns its own
// Navigator; it is not safe for concurrent use.
type Navigator struct {
	images []Image
	index  int
	open   bool
}

// NewNavigator creates a closed navigator over images
func NewNavigator(images []Image) *Navigator {
	return &Navigator{images: images}
}

// SetImages replaces the sequence, closing the lightbox if the current index
// no longer exists.
func (n *Navigator) SetImages(images []Image) {
	n.images = images
	if n.index >= len(images) {
		n.index = 0
		n.open = false
	}
}

// Len returns the length of the sequence
func (n *Navigator) Len() int { return len(n.images) }

// Open shows the image at i. Out of range indexes are ignored.
func (n *Navigator) Open(i int) bool {
	if i < 0 || i >= len(n.images) {
		return false
	}
	n.index = i
	n.open = true
	return true
}

// Close hides the lightbox
func (n *Navigator) Close() { n.open = false }

// IsOpen reports whether the lightbox is showing
func (n *Navigator) IsOpen() bool { return n.open }

// Index returns the current position
func (n *Navigator) Index() int { return n.index }

// CanNavigate reports whether prev/next controls are shown
func (n *Navigator) CanNavigate() bool { return len(n.images) > 1 }

// Next moves forward, wrapping to the first image
func (n *Navigator) Next() {
	if !n.CanNavigate() {
		return
	}
	n.index = (n.index + 1) % len(n.images)
}

// Prev moves back, wrapping to the last image
func (n *Navigator) Prev() {
	if !n.CanNavigate() {
		return
	}
	n.index = (n.index - 1 + len(n.images)) % len(n.images)
}

// Current returns the image at the current position
func (n *Navigator) Current() (Image, bool) {
	if !n.open || n.index >= len(n.images) {
		return Image{}, false
	}
	return n.images[n.index], true
}

// HandleKey maps keyboard input while the lightbox is open
func (n *Navigator) HandleKey(key string) bool {
	if !n.open {
		return false
	}
	switch key {
	case "Escape":
		n.Close()
	case "ArrowLeft":
		n.Prev()
	case "ArrowRight":
		n.Next()
	default:
		return false
	}
	return true
}

// HandleSwipe maps a touch gesture from startX to endX. Swiping left moves
// forward.
func (n *Navigator) HandleSwipe(startX, endX float64) bool {
	diff := startX - endX
	if !n.open || (diff <= SwipeThreshold && diff >= -SwipeThreshold) {
		return false
	}
	if diff > 0 {
		n.Next()
	} else {
		n.Prev()
	}
	return true
}
