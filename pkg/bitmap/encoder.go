package bitmap

import (
	"encoding/binary"
	"image"
	"image/color"
)

type pixelFunc func(x, y int) (r, g, b, a uint8)

// straight returns a reader of non-premultiplied channels, with fast paths
// for the common in-memory image types.
func straight(src image.Image) pixelFunc {
	switch img := src.(type) {
	case *image.NRGBA:
		return func(x, y int) (uint8, uint8, uint8, uint8) {
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+4 : i+4]
			return p[0], p[1], p[2], p[3]
		}
	case *image.RGBA:
		return func(x, y int) (uint8, uint8, uint8, uint8) {
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+4 : i+4]
			switch p[3] {
			case 0xFF:
				return p[0], p[1], p[2], 0xFF
			case 0:
				return 0, 0, 0, 0
			}
			a := uint32(p[3])
			return uint8(uint32(p[0]) * 0xFF / a), uint8(uint32(p[1]) * 0xFF / a), uint8(uint32(p[2]) * 0xFF / a), p[3]
		}
	default:
		return func(x, y int) (uint8, uint8, uint8, uint8) {
			n := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			return n.R, n.G, n.B, n.A
		}
	}
}

func each(src image.Image, bpp int, put func(dst []byte, r, g, b, a uint8)) []byte {
	bounds := src.Bounds()
	at := straight(src)
	dst := make([]byte, bounds.Dx()*bounds.Dy()*bpp)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := at(x, y)
			put(dst[i:i+bpp:i+bpp], r, g, b, a)
			i += bpp
		}
	}
	return dst
}

// EncodeRGB565 packs img row-major into 16-bit pixels in the given byte
// order. Alpha is dropped, not composited.
func EncodeRGB565(src image.Image, order binary.ByteOrder) []byte {
	bounds := src.Bounds()
	at := straight(src)
	dst := NewRGB565(bounds, order)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := at(x, y)
			dst.put(x, y, r, g, b)
		}
	}
	return dst.Pix()
}

// EncodeBGR drops alpha and swaps to blue, green, red.
func EncodeBGR(src image.Image) []byte {
	return each(src, 3, func(dst []byte, r, g, b, _ uint8) {
		dst[0], dst[1], dst[2] = b, g, r
	})
}

func EncodeBGRA(src image.Image) []byte {
	return each(src, 4, func(dst []byte, r, g, b, a uint8) {
		dst[0], dst[1], dst[2], dst[3] = b, g, r, a
	})
}

// EncodeCompressedBGRA keeps 4 bits per channel in 3 bytes:
//
//	b4 b3 b2 b1 0 0 a4 a3 | g4 g3 g2 g1 0 0 a2 a1 | r4 r3 r2 r1 0 0 0 0
func EncodeCompressedBGRA(src image.Image) []byte {
	return each(src, 3, func(dst []byte, r, g, b, a uint8) {
		a4 := a >> 4
		dst[0] = b&0xF0 | a4>>2
		dst[1] = g&0xF0 | a4&0x03
		dst[2] = r & 0xF0
	})
}
