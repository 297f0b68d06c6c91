// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package fits

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/bm3dlight/internal/tensor"
	"golang.org/x/image/tiff"
)

// Decodes a TIFF, PNG or JPEG image into values in [0,1]. Gray images become
// rows x cols, color images rows x cols x 3. Alpha is ignored
func (f *Image) ReadRaster(r io.Reader) error {
	img, format, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("%d: %s", f.ID, err.Error())
	}
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	bitpix, channels := colorModelToBitpixAndChannels(img.ColorModel())
	if channels == 0 {
		channels = 3 // paletted and YCbCr images decode to color
	}
	f.Bitpix = bitpix
	f.Bzero, f.Bscale = 0, 1
	if channels == 1 {
		f.Data = tensor.New(height, width)
	} else {
		f.Data = tensor.New(height, width, 3)
	}
	f.Header.Strings["FORMAT"] = format

	size := width * height
	minX, minY := img.Bounds().Min.X, img.Bounds().Min.Y
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if channels == 1 {
				g := color.Gray16Model.Convert(img.At(minX+x, minY+y)).(color.Gray16)
				f.Data.Data[i] = float64(g.Y) / 65535
				continue
			}
			rr, gg, bb, _ := img.At(minX+x, minY+y).RGBA()
			f.Data.Data[i] = float64(rr) / 65535
			f.Data.Data[i+size] = float64(gg) / 65535
			f.Data.Data[i+2*size] = float64(bb) / 65535
		}
	}
	return nil
}

func colorModelToBitpixAndChannels(m color.Model) (bitpix, channels int32) {
	switch m {
	case color.RGBAModel, color.NRGBAModel:
		return 8, 3
	case color.RGBA64Model, color.NRGBA64Model:
		return 16, 3
	case color.AlphaModel, color.GrayModel:
		return 8, 1
	case color.Alpha16Model, color.Gray16Model:
		return 16, 1
	default:
		return 8, 0
	}
}

// Converts sRGB encoded values in [0,1] to linear light, in place
func ToLinear(t *tensor.Tensor) {
	convertColors(t, func(r, g, b float64) (float64, float64, float64) {
		return colorful.Color{R: r, G: g, B: b}.LinearRgb()
	})
}

// Converts linear light values in [0,1] to sRGB encoding, in place
func ToSRGB(t *tensor.Tensor) {
	convertColors(t, func(r, g, b float64) (float64, float64, float64) {
		c := colorful.LinearRgb(r, g, b)
		return c.R, c.G, c.B
	})
}

// Applies a per pixel color conversion. Gray images convert each value as an equal RGB triple
func convertColors(t *tensor.Tensor, conv func(r, g, b float64) (float64, float64, float64)) {
	if t.Channels() == 3 {
		rs, gs, bs := t.Plane(0), t.Plane(1), t.Plane(2)
		for i := range rs {
			rs[i], gs[i], bs[i] = conv(rs[i], gs[i], bs[i])
		}
		return
	}
	for i, v := range t.Data {
		t.Data[i], _, _ = conv(v, v, v)
	}
}

// Writes an image to a TIFF, PNG or JPEG file, chosen by suffix. Values are mapped
// from [min,max] to the full output range and clipped. TIFF and PNG use 16 bits per channel
func (f *Image) WriteRasterToFile(fileName string, min, max float64) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := f.WriteRaster(writer, strings.ToLower(path.Ext(fileName)), min, max); err != nil {
		return err
	}
	return writer.Flush()
}

// Writes an image in the format given by a file suffix like ".png"
func (f *Image) WriteRaster(writer io.Writer, suffix string, min, max float64) error {
	switch suffix {
	case ".tif", ".tiff":
		return tiff.Encode(writer, f.toImage16(min, max), &tiff.Options{Compression: tiff.Deflate})
	case ".png":
		return png.Encode(writer, f.toImage16(min, max))
	case ".jpg", ".jpeg":
		return jpeg.Encode(writer, f.toImage16(min, max), &jpeg.Options{Quality: 95})
	}
	return fmt.Errorf("%d: unsupported image format '%s'", f.ID, suffix)
}

// Converts to a 16-bit gray or color Go image
func (f *Image) toImage16(min, max float64) image.Image {
	width, height := f.Data.Cols(), f.Data.Rows()
	size := width * height
	rect := image.Rectangle{image.Point{0, 0}, image.Point{width, height}}
	scale := 1 / (max - min)
	norm := func(v float64) uint16 {
		v = (v - min) * scale
		// replace NaNs with zeros for export
		if math.IsNaN(v) || v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint16(math.Round(v * 65535))
	}

	if f.Data.Channels() == 3 {
		img := image.NewRGBA64(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				img.SetRGBA64(x, y, color.RGBA64{norm(f.Data.Data[i]), norm(f.Data.Data[i+size]), norm(f.Data.Data[i+2*size]), 65535})
			}
		}
		return img
	}
	img := image.NewGray16(rect)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{norm(f.Data.Data[y*width+x])})
		}
	}
	return img
}
