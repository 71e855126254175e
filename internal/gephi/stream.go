// Package gephi streams the class hierarchy of a catalog in the Gephi graph
// streaming format, one JSON event per line.
package gephi

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/schema"
)

const (
	defaultLimit = 10000
	defaultSize  = 20
	limitCoord   = 500
)

// Edge labels.
const (
	LabelExtends = "extends"
	LabelLinks   = "links"
)

type GraphStreamHandler struct {
	Catalog *schema.Catalog
}

type GraphStream struct {
	seen  map[string]int
	edges int
	buf   *bytes.Buffer
	w     io.Writer
}

func printNodeID(id int) string {
	return strconv.FormatInt(int64(id), 16)
}

func NewGraphStream(w io.Writer) *GraphStream {
	return &GraphStream{
		w:    w,
		seen: make(map[string]int),
		buf:  bytes.NewBuffer(nil),
	}
}

func randCoord() float64 {
	return (rand.Float64() - 0.5) * limitCoord * 2
}

func randPos() (x float64, y float64) {
	x = randCoord()
	x2 := x * x
	for y = randCoord(); x2+y*y > limitCoord*limitCoord; y = randCoord() {
	}
	return
}

func (gs *GraphStream) encode(o interface{}) {
	data, _ := json.Marshal(o)
	gs.buf.Write(data)
	// Gephi requires \r character at the end of each line
	gs.buf.WriteString("\r\n")
}

// AddNode emits a node once per label and returns its stream id. Positions
// are random unless props carry "x" and "y".
func (gs *GraphStream) AddNode(label string, props map[string]interface{}) string {
	if id, ok := gs.seen[label]; ok {
		return printNodeID(id)
	}
	id := len(gs.seen)
	gs.seen[label] = id
	sid := printNodeID(id)

	x, y := randPos()
	node := streamNode{"label": label, "size": defaultSize, "x": x, "y": y}
	for k, v := range props {
		node[k] = v
	}
	gs.encode(graphStreamEvent{AddNodes: map[string]streamNode{sid: node}})
	return sid
}

func (gs *GraphStream) AddEdge(s, o, pred string) {
	id := "e" + strconv.FormatInt(int64(gs.edges), 16)
	gs.edges++
	gs.encode(graphStreamEvent{
		AddEdges: map[string]streamEdge{id: {
			Subject:   s,
			Predicate: pred, Label: pred,
			Object: o,
		}},
	})
}

func (gs *GraphStream) Flush() error {
	if gs.buf.Len() == 0 {
		return nil
	}
	_, err := gs.buf.WriteTo(gs.w)
	if err == nil {
		gs.buf.Reset()
	}
	return err
}

type streamNode map[string]interface{}
type streamEdge struct {
	Subject   string `json:"source"`
	Label     string `json:"label"`
	Predicate string `json:"pred"`
	Object    string `json:"target"`
}
type graphStreamEvent struct {
	AddNodes map[string]streamNode `json:"an,omitempty"`
	AddEdges map[string]streamEdge `json:"ae,omitempty"`
}

func classProps(c *schema.Class) map[string]interface{} {
	props := map[string]interface{}{
		"partitions": len(c.Partitions()),
		"properties": len(c.DeclaredProperties()),
	}
	if c.IsAbstract() {
		props["abstract"] = true
	}
	return props
}

// StreamSnapshot writes the classes of snap as nodes. Superclass relations
// become "extends" edges; with links set, link and embedded properties that
// name a class become "links" edges labeled by the property.
func StreamSnapshot(gs *GraphStream, snap *schema.Snapshot, links bool, limit int) error {
	classes := snap.Classes()
	if limit > 0 && len(classes) > limit {
		classes = classes[:limit]
	}
	ids := make(map[string]string, len(classes))
	for _, c := range classes {
		ids[c.Name()] = gs.AddNode(c.Name(), classProps(c))
	}
	if err := gs.Flush(); err != nil {
		return err
	}
	for _, c := range classes {
		for _, s := range c.SuperClasses() {
			if o, ok := ids[s.Name()]; ok {
				gs.AddEdge(ids[c.Name()], o, LabelExtends)
			}
		}
		if links {
			for _, p := range c.DeclaredProperties() {
				if o, ok := ids[p.LinkedClass()]; ok {
					gs.AddEdge(ids[c.Name()], o, p.Name())
				}
			}
		}
		if err := gs.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraphStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var limit int
	if s := r.FormValue("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}
	if limit == 0 {
		limit = defaultLimit
	}
	mode := "hierarchy"
	if s := r.FormValue("mode"); s != "" {
		mode = s
	}
	var links bool
	switch mode {
	case "hierarchy":
	case LabelLinks:
		links = true
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/stream+json")
	gs := NewGraphStream(w)
	if err := StreamSnapshot(gs, s.Catalog.Snapshot(), links, limit); err != nil {
		clog.Errorf("gephi: cannot stream classes: %v", err)
	}
}
