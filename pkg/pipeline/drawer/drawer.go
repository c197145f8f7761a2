// Package drawer renders the pipeline step graph as a DOT file, with
// vertices colored by the terminal status of each step.
package drawer

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/go-releaser/pkg/pipeline/model"
)

// Drawer accumulates the steps and links of a pipeline and renders them
// as a DOT graph.
type Drawer struct {
	mu          sync.Mutex
	graph       graph.Graph[string, string]
	statuses    map[string]model.Status
	skipReasons map[string]string
	dotFileName string
}

// New creates a drawer that writes the graph to dotFileName.
func New(dotFileName string) *Drawer {
	return &Drawer{
		dotFileName: dotFileName,
		graph:       graph.New(graph.StringHash, graph.Directed()),
		statuses:    make(map[string]model.Status),
		skipReasons: make(map[string]string),
	}
}

// AddStep adds a step to the pipeline graph.
func (d *Drawer) AddStep(name string) error {
	err := d.graph.AddVertex(name)
	if err != nil {
		return errors.Wrap(err, "unable to add vertex")
	}

	d.statuses[name] = model.StatusPending

	return nil
}

// AddLink adds a link between parent and children steps.
func (d *Drawer) AddLink(parentName, childrenName string) error {
	err := d.graph.AddEdge(parentName, childrenName)
	if err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentName, childrenName)
	}

	return nil
}

// SetStatus records the terminal status of a step, used to pick the
// vertex fill color.
func (d *Drawer) SetStatus(name string, status model.Status, skipReason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.statuses[name] = status
	if skipReason != "" {
		d.skipReasons[name] = skipReason
	}
}

// Draw writes the DOT file.
func (d *Drawer) Draw() error {
	file, err := os.Create(d.dotFileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", d.dotFileName)
	}
	defer file.Close()

	err = d.dot(file)
	if err != nil {
		return errors.Wrap(err, "unable to render pipeline graph")
	}

	return nil
}

// statusColor maps a step status to a fill color. The hex values are
// validated through the colors package so an invalid constant fails
// fast instead of producing a silently broken DOT file.
func statusColor(status model.Status) (string, error) {
	var hexValue string

	switch status {
	case model.StatusSucceeded:
		hexValue = "#90ee90"
	case model.StatusFailed:
		hexValue = "#f08080"
	case model.StatusSkipped:
		hexValue = "#d3d3d3"
	case model.StatusRunning:
		hexValue = "#add8e6"
	case model.StatusPending:
		hexValue = "#ffffff"
	default:
		hexValue = "#ffffff"
	}

	hex, err := colors.ParseHEX(hexValue)
	if err != nil {
		return "", errors.Wrapf(err, "unable to parse color %s", hexValue)
	}

	return hex.String(), nil
}

const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           interface{}
	Target           interface{}
	SourceWeight     int
	SourceAttributes map[string]string
	EdgeWeight       int
}

func (d *Drawer) dot(w io.Writer) error {
	desc, err := d.generateDOT()
	if err != nil {
		return fmt.Errorf("failed to generate DOT description: %w", err)
	}

	return renderDOT(w, desc)
}

func (d *Drawer) generateDOT() (description, error) {
	desc := description{
		GraphType:    "digraph",
		Attributes:   map[string]string{"rankdir": "LR"},
		EdgeOperator: "->",
		Statements:   make([]statement, 0),
	}

	adjacencyMap, err := d.graph.AdjacencyMap()
	if err != nil {
		return desc, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for vertex, adjacencies := range adjacencyMap {
		fillColor, err := statusColor(d.statuses[vertex])
		if err != nil {
			return desc, err
		}

		sourceAttributes := map[string]string{
			"style":     "filled",
			"fillcolor": fillColor,
		}
		if reason, ok := d.skipReasons[vertex]; ok {
			sourceAttributes["tooltip"] = reason
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceAttributes: sourceAttributes,
		})

		for adjacency, edge := range adjacencies {
			desc.Statements = append(desc.Statements, statement{
				Source:     vertex,
				Target:     adjacency,
				EdgeWeight: edge.Properties.Weight,
			})
		}
	}

	return desc, nil
}

func renderDOT(w io.Writer, d description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return tpl.Execute(w, d)
}
