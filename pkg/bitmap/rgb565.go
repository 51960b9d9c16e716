package bitmap

import (
	"encoding/binary"
	"image"
	"image/color"
)

// https://github.com/gonutz/framebuffer/blob/master/fb.go

func NewRGB565(r image.Rectangle, order binary.ByteOrder) *RGB565 {
	return &RGB565{
		pixels: make([]byte, 2*r.Dx()*r.Dy()),
		stride: 2 * r.Dx(),
		bounds: r,
		order:  order,
	}
}

// RGB565 is a 16-bit frame buffer in a fixed byte order. It implements the
// draw.Image interface.
type RGB565 struct {
	pixels []byte
	stride int
	bounds image.Rectangle
	order  binary.ByteOrder
}

// Pix returns the wire bytes, row-major.
func (d *RGB565) Pix() []byte {
	return d.pixels
}

func (d *RGB565) Bounds() image.Rectangle {
	return d.bounds
}

func (d *RGB565) ColorModel() color.Model {
	return RGB565Model
}

func (d *RGB565) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(d.bounds)) {
		return RGB565Color(0)
	}
	i := d.offset(x, y)
	return RGB565Color(d.order.Uint16(d.pixels[i:]))
}

func (d *RGB565) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(d.bounds)) {
		return
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	d.put(x, y, n.R, n.G, n.B)
}

func (d *RGB565) put(x, y int, r, g, b uint8) {
	d.order.PutUint16(d.pixels[d.offset(x, y):], Pack565(r, g, b))
}

func (d *RGB565) offset(x, y int) int {
	return (y-d.bounds.Min.Y)*d.stride + 2*(x-d.bounds.Min.X)
}

// This shows the memory layout of a pixel:
//
//	bit 76543210  76543210
//	    RRRRRGGG  GGGBBBBB
//	   high byte  low byte
var RGB565Model = color.ModelFunc(func(c color.Color) color.Color {
	if v, ok := c.(RGB565Color); ok {
		return v
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGB565Color(Pack565(n.R, n.G, n.B))
})

// Pack565 keeps the top 5/6/5 bits of each channel. Alpha never reaches it:
// callers drop it first.
func Pack565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// Unpack565 places the stored bits back at the top of each channel with
// zero low bits, so Pack565(Unpack565(v)) == v.
func Unpack565(v uint16) (r, g, b uint8) {
	r = uint8(v>>11) << 3
	g = uint8(v>>5&0x3F) << 2
	b = uint8(v&0x1F) << 3
	return
}

// RGB565Color implements the color.Color interface.
type RGB565Color uint16

// RGBA implements the color.Color interface.
func (c RGB565Color) RGBA() (r, g, b, a uint32) {
	// To convert a color channel from 5 or 6 bits back to 16 bits, the short
	// bit pattern is duplicated to fill all 16 bits.
	rBits := uint32(c & 0xF800) // RRRRR00000000000
	gBits := uint32(c & 0x7E0)  // 00000GGGGGG00000
	bBits := uint32(c & 0x1F)   // 00000000000BBBBB
	r = rBits | rBits>>5 | rBits>>10 | rBits>>15
	g = gBits<<5 | gBits>>1 | gBits>>7
	b = bBits<<11 | bBits<<6 | bBits<<1 | bBits>>4
	a = 0xFFFF
	return
}
