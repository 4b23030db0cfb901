package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/arloliu/go-saxs/message"
)

type peak struct {
	center float64
	width  float64
	height float64
}

// generator builds profiles made of gaussian peaks over a flat background on a linear
// q grid, with normally distributed noise.
type generator struct {
	q          []float64
	background float64
	peaks      []peak
	noise      distuv.Normal
}

func newGenerator(points int, qMin, qMax, noise float64) (*generator, error) {
	if points < 2 {
		return nil, fmt.Errorf("points must be at least 2, got %d", points)
	}
	if qMax <= qMin {
		return nil, fmt.Errorf("empty q range [%g, %g]", qMin, qMax)
	}
	if noise < 0 {
		return nil, fmt.Errorf("negative noise %g", noise)
	}

	span := qMax - qMin

	return &generator{
		q:          floats.Span(make([]float64, points), qMin, qMax),
		background: 10,
		peaks: []peak{
			{center: qMin + 0.25*span, width: 0.02 * span, height: 400},
			{center: qMin + 0.5*span, width: 0.03 * span, height: 250},
			{center: qMin + 0.75*span, width: 0.015 * span, height: 120},
		},
		noise: distuv.Normal{Mu: 0, Sigma: noise},
	}, nil
}

// next returns the i-th profile and its flow metadata. Peak positions drift slowly with i.
func (g *generator) next(i int) (*message.Sample, *message.FlowMetadata, error) {
	id := fmt.Sprintf("synthetic-%06d", i)
	drift := 1 + 0.01*math.Sin(float64(i)/10)

	intensity := make([]float64, len(g.q))
	for j := range intensity {
		intensity[j] = g.background
	}

	processed := make(map[int]float64, len(g.peaks))
	for k, p := range g.peaks {
		shape := distuv.Normal{Mu: p.center * drift, Sigma: p.width}
		scale := p.height * p.width * math.Sqrt(2*math.Pi)
		for j, x := range g.q {
			intensity[j] += scale * shape.Prob(x)
		}
		processed[k] = g.q[g.nearest(shape.Mu)]
	}

	for j := range intensity {
		intensity[j] = math.Max(intensity[j]+g.noise.Rand(), 0)
	}

	uncertainty := make([]float64, len(intensity))
	for j, v := range intensity {
		uncertainty[j] = math.Sqrt(math.Max(v, 1))
	}
	floats.Scale(0.1, uncertainty)

	s, err := message.NewSample(id, g.q, intensity, uncertainty)
	if err != nil {
		return nil, nil, err
	}

	current := map[int]float64{0: floats.Sum(intensity) / float64(len(intensity))}
	f := message.NewFlowMetadata(id, processed, nil, current)

	return s, f, nil
}

func (g *generator) nearest(q float64) int {
	step := g.q[1] - g.q[0]
	idx := int(math.Round((q - g.q[0]) / step))

	return min(max(idx, 0), len(g.q)-1)
}
