// Package academic resolves calendar time into academic periods and
// sessions. Period resolution is a pure function of the embedded
// calendar; session resolution goes through the store.
package academic

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed calendar.yaml
var calendarYAML []byte

type calendarConfig struct {
	Semesters []semesterConfig `yaml:"semesters"`
	Session   sessionDefaults  `yaml:"session"`
}

type semesterConfig struct {
	Tag  int         `yaml:"tag"`
	Cuts []cutConfig `yaml:"cuts"`
}

type cutConfig struct {
	Months []int `yaml:"months"`
}

type sessionDefaults struct {
	DurationMinutes  int    `yaml:"duration_minutes"`
	ToleranceMinutes int    `yaml:"tolerance_minutes"`
	DefaultCourse    string `yaml:"default_course"`
	DefaultRoom      string `yaml:"default_room"`
}

var calendar calendarConfig

// monthIndex[m] = (semester tag, cut number) for month m.
var monthIndex [13]struct {
	semester int
	cut      int
}

func init() {
	if err := yaml.Unmarshal(calendarYAML, &calendar); err != nil {
		// Embedded file, cannot fail outside of a build error.
		panic("failed to unmarshal embedded calendar.yaml: " + err.Error())
	}
	for _, sem := range calendar.Semesters {
		for i, cut := range sem.Cuts {
			for _, m := range cut.Months {
				if m < 1 || m > 12 {
					panic(fmt.Sprintf("calendar.yaml: month %d out of range", m))
				}
				monthIndex[m].semester = sem.Tag
				monthIndex[m].cut = i + 1
			}
		}
	}
	for m := 1; m <= 12; m++ {
		if monthIndex[m].semester == 0 {
			panic(fmt.Sprintf("calendar.yaml: month %d not covered", m))
		}
	}
}
