package annotation

import (
	"sort"

	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

// UnnamedLabel stands in for empty labels in per-label counts.
const UnnamedLabel = "unnamed"

// LabelCount is the number of shapes carrying one label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ImageStats counts the shapes of one image.
type ImageStats struct {
	Total     int          `json:"total"`
	Rotated   int          `json:"rotated"`
	Normal    int          `json:"normal"`
	Difficult int          `json:"difficult"`
	Labels    []LabelCount `json:"labels"`
}

// ProjectStats counts annotated images.
type ProjectStats struct {
	TotalImages int     `json:"total_images"`
	Annotated   int     `json:"annotated"`
	Percent     float64 `json:"percent"`
}

// Report combines image and project statistics.
type Report struct {
	Image   ImageStats   `json:"image"`
	Project ProjectStats `json:"project"`
}

// Statistics counts shapes by rotation, difficulty and label, and counts the
// images in imagePaths that r reports as annotated. Labels
// are sorted; an empty label is reported as UnnamedLabel.
func Statistics(shapes []*shape.Shape, imagePaths []string, r PathResolver) Report {
	var rep Report

	byLabel := make(map[string]int)
	for _, sh := range shapes {
		rep.Image.Total++
		if sh.Rotated {
			rep.Image.Rotated++
		} else {
			rep.Image.Normal++
		}
		if sh.Difficult {
			rep.Image.Difficult++
		}
		label := sh.Label
		if label == "" {
			label = UnnamedLabel
		}
		byLabel[label]++
	}
	rep.Image.Labels = make([]LabelCount, 0, len(byLabel))
	for label, n := range byLabel {
		rep.Image.Labels = append(rep.Image.Labels, LabelCount{Label: label, Count: n})
	}
	sort.Slice(rep.Image.Labels, func(i, j int) bool {
		return rep.Image.Labels[i].Label < rep.Image.Labels[j].Label
	})

	rep.Project.TotalImages = len(imagePaths)
	if r != nil {
		for _, img := range imagePaths {
			if r.Annotated(img) {
				rep.Project.Annotated++
			}
		}
	}
	if rep.Project.TotalImages > 0 {
		rep.Project.Percent = float64(rep.Project.Annotated) * 100 / float64(rep.Project.TotalImages)
	}
	return rep
}
