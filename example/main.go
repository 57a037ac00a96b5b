package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	gifpipe "github.com/nullpixel/gifpipe"
)

func main() {
	fmt.Println("gifpipe Examples")
	fmt.Println("================")

	fmt.Println("\n1. Creating simple animation...")
	if err := simpleAnimation(); err != nil {
		fmt.Printf("Error: %v\n", err)
	} else {
		fmt.Println("created animation.gif")
	}

	fmt.Println("\n2. Creating gradient animation...")
	if err := gradientAnimation(); err != nil {
		fmt.Printf("Error: %v\n", err)
	} else {
		fmt.Println("created gradient.gif")
	}

	fmt.Println("\n3. Creating with custom options...")
	if err := customOptions(); err != nil {
		fmt.Printf("Error: %v\n", err)
	} else {
		fmt.Println("created custom.gif")
	}

	fmt.Println("\nAll done!")
}

// simpleAnimation encodes a moving red circle over a white background.
func simpleAnimation() error {
	width, height := 200, 200

	settings := gifpipe.DefaultSettings()
	settings.Quality = 90

	out, err := os.Create("animation.gif")
	if err != nil {
		return err
	}
	defer out.Close()

	ctx := context.Background()
	collector, err := gifpipe.NewCollector(ctx, settings, out, gifpipe.NopProgress{})
	if err != nil {
		return err
	}

	for i := 0; i < 10; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}

		centerX := 50 + i*15
		centerY := 100
		radius := 30
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx, dy := x-centerX, y-centerY
				if dx*dx+dy*dy <= radius*radius {
					img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
				}
			}
		}

		if err := collector.AddFrameRGBA(i, img, float64(i)*0.1); err != nil {
			return err
		}
	}

	return collector.Finish()
}

// gradientAnimation encodes a scrolling color gradient.
func gradientAnimation() error {
	width, height := 200, 200

	settings := gifpipe.DefaultSettings()
	settings.Quality = 90

	out, err := os.Create("gradient.gif")
	if err != nil {
		return err
	}
	defer out.Close()

	ctx := context.Background()
	collector, err := gifpipe.NewCollector(ctx, settings, out, gifpipe.NopProgress{})
	if err != nil {
		return err
	}

	for f := 0; f < 20; f++ {
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r := uint8((x + f*10) % 256)
				g := uint8((y + f*10) % 256)
				img.SetNRGBA(x, y, color.NRGBA{r, g, 200, 255})
			}
		}
		if err := collector.AddFrameRGBA(f, img, float64(f)*0.05); err != nil {
			return err
		}
	}

	return collector.Finish()
}

// customOptions demonstrates extra effort, a matte, and lossy LZW on a
// hue-cycling square.
func customOptions() error {
	width, height := 150, 150

	settings := gifpipe.DefaultSettings()
	settings.Quality = 95
	settings.ExtraEffort = true
	settings.Lossy = true
	settings.Matte = &color.RGBA{20, 20, 40, 255}
	settings.Repeat = gifpipe.RepeatInfinite()

	out, err := os.Create("custom.gif")
	if err != nil {
		return err
	}
	defer out.Close()

	ctx := context.Background()
	collector, err := gifpipe.NewCollector(ctx, settings, out, gifpipe.NopProgress{})
	if err != nil {
		return err
	}

	size, offsetX, offsetY := 50, 50, 50
	for f := 0; f < 15; f++ {
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		hue := float64(f) / 15.0
		r, g, b := hsvToRGB(hue, 1.0, 1.0)
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				img.SetNRGBA(offsetX+x, offsetY+y, color.NRGBA{r, g, b, 255})
			}
		}
		if err := collector.AddFrameRGBA(f, img, float64(f)*0.08); err != nil {
			return err
		}
	}

	return collector.Finish()
}

// hsvToRGB converts HSV color to RGB (h: 0-1, s: 0-1, v: 0-1).
func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	if s == 0 {
		val := uint8(v * 255)
		return val, val, val
	}

	h = h * 6
	i := int(h)
	f := h - float64(i)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch i {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}
