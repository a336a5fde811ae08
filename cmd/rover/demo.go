package main

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/sensor"
)

func demoFrame(c color.RGBA) sensor.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 52, 39))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return sensor.FromImage(img)
}

// demoScript drives past red, green and blue patches, meets a wall and
// crosses a white patch.
func demoScript(timeStep time.Duration) *robot.Scripted {
	var (
		floor = demoFrame(color.RGBA{R: 60, G: 60, B: 60, A: 255})
		red   = demoFrame(color.RGBA{R: 210, G: 30, B: 20, A: 255})
		green = demoFrame(color.RGBA{R: 25, G: 210, B: 30, A: 255})
		blue  = demoFrame(color.RGBA{R: 20, G: 30, B: 215, A: 255})
		white = demoFrame(color.RGBA{R: 230, G: 230, B: 230, A: 255})
	)

	steps := make([]robot.ScriptStep, 120)
	for i := range steps {
		steps[i].Frame = floor
		switch {
		case i >= 5 && i < 10:
			steps[i].Frame = red
		case i >= 15 && i < 20:
			steps[i].Frame = green
		case i >= 30 && i < 35:
			steps[i].Proximity[sensor.ProximityChannels-2] = 140 // ps6
		case i >= 70 && i < 75:
			steps[i].Frame = blue
		case i >= 90 && i < 92:
			steps[i].Frame = white
		}
	}
	return robot.NewScripted(timeStep, steps)
}
