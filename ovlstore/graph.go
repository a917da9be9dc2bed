package ovlstore

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/jwaldrip/odin/cli"
	log "github.com/sirupsen/logrus"

	"github.com/mudesheng/ovlcorrect/readstore"
	"github.com/mudesheng/ovlcorrect/utils"
)

// Graphviz builds the overlap graph: one node per read, one edge a -> b per
// overlap, blue for normal and red for innie overlaps.
func Graphviz(olaps []Overlap) (*gographviz.Graph, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		return nil, err
	}
	if err := g.SetDir(true); err != nil {
		return nil, err
	}
	if err := g.SetStrict(false); err != nil {
		return nil, err
	}
	added := make(map[uint32]bool)
	addNode := func(id uint32) error {
		if added[id] {
			return nil
		}
		added[id] = true
		attr := make(map[string]string)
		attr["color"] = "Green"
		attr["shape"] = "box"
		return g.AddNode("G", strconv.Itoa(int(id)), attr)
	}
	for _, o := range olaps {
		if err := addNode(o.AID); err != nil {
			return nil, err
		}
		if err := addNode(o.BID); err != nil {
			return nil, err
		}
		attr := make(map[string]string)
		ori := "N"
		attr["color"] = "Blue"
		if o.Innie {
			ori = "I"
			attr["color"] = "Red"
		}
		attr["label"] = "\"" + ori + " " + strconv.Itoa(int(o.AHang)) + " " + strconv.Itoa(int(o.BHang)) + "\""
		if err := g.AddEdge(strconv.Itoa(int(o.AID)), strconv.Itoa(int(o.BID)), true, attr); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func WriteGraphviz(olaps []Overlap, graphfn string) error {
	g, err := Graphviz(olaps)
	if err != nil {
		return err
	}
	gfp, err := os.Create(graphfn)
	if err != nil {
		return err
	}
	if _, err := gfp.WriteString(g.String()); err != nil {
		gfp.Close()
		return err
	}
	return gfp.Close()
}

func checkRange(c cli.Command) (bgn, end uint32, err error) {
	b, ok := c.Flag("bgn").Get().(int)
	if !ok || b < 0 || uint64(b) > math.MaxUint32 {
		return 0, 0, fmt.Errorf("argument 'bgn': %v set error", c.Flag("bgn"))
	}
	e, ok := c.Flag("end").Get().(int)
	if !ok || e < b || uint64(e) > math.MaxUint32 {
		return 0, 0, fmt.Errorf("argument 'end': %v set error", c.Flag("end"))
	}
	return uint32(b), uint32(e), nil
}

// OverlapGraph writes the overlaps anchored in [bgn, end] as a DOT graph.
func OverlapGraph(c cli.Command) {
	gOpt, suc := utils.CheckGlobalArgs(c.Parent())
	if !suc {
		log.Fatalf("[OverlapGraph] check global Arguments error, opt: %v\n", gOpt)
	}
	bgn, end, err := checkRange(c)
	if err != nil {
		log.Fatalf("[OverlapGraph] %v\n", err)
	}
	cfgInfo, err := readstore.ParseCfg(gOpt.CfgFn)
	if err != nil {
		log.Fatalf("[OverlapGraph] ParseCfg 'C': %v err: %v\n", gOpt.CfgFn, err)
	}
	olaps, err := Load(cfgInfo.OvlFiles, bgn, end)
	if err != nil {
		log.Fatalf("[OverlapGraph] %v\n", err)
	}
	graphfn := gOpt.Prefix + ".ovl.dot"
	if err := WriteGraphviz(olaps, graphfn); err != nil {
		log.Fatalf("[OverlapGraph] write graph file: %s failed, err: %v\n", graphfn, err)
	}
	log.Infof("[OverlapGraph] wrote %d overlaps to %s", len(olaps), graphfn)
}
