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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// Writes an image to a FITS file with given filename.
// Creates/overwrites the file if necessary
func (fits *Image) WriteFile(fileName string) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := fits.Write(w); err != nil {
		return err
	}
	return w.Flush()
}

// Writes an image as 64-bit floating point FITS to an io.Writer
func (fits *Image) Write(w io.Writer) error {
	// Build header in string buffer
	sb := strings.Builder{}
	writeBool(&sb, "SIMPLE", true, "FITS standard 4.0")
	writeInt(&sb, "BITPIX", -64, "64-bit floating point")
	naxisn := fits.Naxisn()
	writeInt(&sb, "NAXIS", len(naxisn), "[1] Number of axis")
	for i, n := range naxisn {
		writeInt(&sb, fmt.Sprintf("NAXIS%d", i+1), n, "[1] Axis size")
	}
	writeFloat(&sb, "BZERO", 0, "[1] Zero offset")
	writeFloat(&sb, "BSCALE", 1, "[1] Value scale")
	for _, h := range fits.Header.History {
		writeHistory(&sb, h)
	}
	writeEnd(&sb)

	// Pad current header block with spaces if necessary
	if bytesInHeaderBlock := sb.Len() % fitsBlockSize; bytesInHeaderBlock > 0 {
		sb.WriteString(strings.Repeat(" ", fitsBlockSize-bytesInHeaderBlock))
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	// Write payload data, replacing NaNs with zeros for compatibility
	if err := writeFloat64Array(w, fits.Data.Data, true); err != nil {
		return err
	}

	// Pad data unit with zeros
	if bytesInDataBlock := (len(fits.Data.Data) * 8) % fitsBlockSize; bytesInDataBlock > 0 {
		if _, err := w.Write(make([]byte, fitsBlockSize-bytesInDataBlock)); err != nil {
			return err
		}
	}
	return nil
}

// Writes a FITS header boolean value
func writeBool(w io.Writer, key string, value bool, comment string) {
	v := "F"
	if value {
		v = "T"
	}
	writeValue(w, key, v, comment)
}

// Writes a FITS header integer value
func writeInt(w io.Writer, key string, value int, comment string) {
	writeValue(w, key, fmt.Sprintf("%d", value), comment)
}

// Writes a FITS header float value
func writeFloat(w io.Writer, key string, value float64, comment string) {
	s := strings.ToUpper(fmt.Sprintf("%.15G", value))
	if !strings.Contains(s, ".") {
		if e := strings.Index(s, "E"); e >= 0 {
			s = s[:e] + "." + s[e:]
		} else {
			s += "."
		}
	}
	writeValue(w, key, s, comment)
}

func writeValue(w io.Writer, key, value, comment string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	if len(comment) > 47 {
		comment = comment[0:47]
	}
	fmt.Fprintf(w, "%-8s= %20s / %-47s", key, value, comment)
}

// Writes a FITS history line, truncated to fit a single header line
func writeHistory(w io.Writer, text string) {
	if len(text) > 72 {
		text = text[0:72]
	}
	fmt.Fprintf(w, "HISTORY %-72s", text)
}

// Writes a FITS header end record
func writeEnd(w io.Writer) {
	fmt.Fprintf(w, "END%s", strings.Repeat(" ", HeaderLineSize-3))
}

// Writes FITS binary body data in network byte order.
// Optionally replaces NaNs with zeros for compatibility with other software
func writeFloat64Array(w io.Writer, data []float64, replaceNaNs bool) error {
	buf := make([]byte, bufLen)

	for block := 0; block < len(data); block += (bufLen >> 3) {
		size := len(data) - block
		if size > (bufLen >> 3) {
			size = (bufLen >> 3)
		}

		for offset := 0; offset < size; offset++ {
			d := data[block+offset]
			if replaceNaNs && math.IsNaN(d) {
				d = 0
			}
			binary.BigEndian.PutUint64(buf[offset<<3:], math.Float64bits(d))
		}
		if _, err := w.Write(buf[:(size << 3)]); err != nil {
			return err
		}
	}
	return nil
}
