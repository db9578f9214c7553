package ui

import (
	"bufio"
	"os"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// PrintQR renders a QR code of the serving URL to the terminal as compact
// half-block characters with a border.
func PrintQR(s string) error {
	qr, err := qrcode.New(s, qrcode.Medium)
	if err != nil {
		return err
	}
	qr.DisableBorder = true

	bm := qr.Bitmap()
	w := len(bm[0])
	h := len(bm)

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	border := strings.Repeat("─", w+2)
	_, _ = out.WriteString("┌" + border + "┐\n")

	// Two bitmap rows per text line using half blocks.
	for y := 0; y < h; y += 2 {
		var b strings.Builder
		b.WriteString("│ ")
		for x := 0; x < w; x++ {
			top := bm[y][x]
			bottom := false
			if y+1 < h {
				bottom = bm[y+1][x]
			}
			b.WriteRune(pixel(top, bottom))
		}
		b.WriteString(" │\n")
		_, _ = out.WriteString(b.String())
	}

	_, _ = out.WriteString("└" + border + "┘\n")
	return nil
}

func pixel(top, bottom bool) rune {
	switch {
	case top && bottom:
		return '█'
	case top && !bottom:
		return '▀'
	case !top && bottom:
		return '▄'
	default:
		return ' '
	}
}
