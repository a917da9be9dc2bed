package readstore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type LibInfo struct {
	Name   string   // name of library
	FnName []string // the reads files of the library
}

type CfgInfo struct {
	MaxRdLen int // maximum read length
	Libs     []LibInfo
	OvlFiles []string // overlap files
}

// ReadFiles lists the read files of every library in order.
func (ci CfgInfo) ReadFiles() (fns []string) {
	for _, lib := range ci.Libs {
		fns = append(fns, lib.FnName...)
	}
	return fns
}

// ParseCfg reads a configure file made of "key = value" lines:
//
//	[global_setting]
//	max_rd_len = 20000
//	ovl = reads.ovl.zst
//	[LIB]
//	name = pb1
//	f1 = reads1.fa
//
// Lines starting with '#' or ';' are comments.
func ParseCfg(fn string) (cfgInfo CfgInfo, err error) {
	inFile, err := os.Open(fn)
	if err != nil {
		return cfgInfo, err
	}
	defer inFile.Close()
	var libInfo LibInfo
	reader := bufio.NewReader(inFile)
	eof := false
	lineNum := 0
	for !eof {
		var line string
		line, err = reader.ReadString('\n')
		if err == io.EOF {
			err = nil
			eof = true
		} else if err != nil {
			return cfgInfo, err
		}
		lineNum++
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0][0] == '#' || fields[0][0] == ';' {
			continue
		}
		switch fields[0] {
		case "[global_setting]":
			continue
		case "[LIB]":
			if libInfo.Name != "" || len(libInfo.FnName) > 0 {
				cfgInfo.Libs = append(cfgInfo.Libs, libInfo)
				libInfo = LibInfo{}
			}
			continue
		}
		if len(fields) != 3 || fields[1] != "=" {
			return cfgInfo, fmt.Errorf("cfg %s line %d: want 'key = value', got %q", fn, lineNum, strings.TrimSpace(line))
		}
		switch fields[0] {
		case "max_rd_len":
			cfgInfo.MaxRdLen, err = strconv.Atoi(fields[2])
		case "name":
			libInfo.Name = fields[2]
		case "f1", "f2":
			libInfo.FnName = append(libInfo.FnName, fields[2])
		case "ovl":
			cfgInfo.OvlFiles = append(cfgInfo.OvlFiles, fields[2])
		default:
			return cfgInfo, fmt.Errorf("cfg %s line %d: unknown key %q", fn, lineNum, fields[0])
		}
		if err != nil {
			return cfgInfo, fmt.Errorf("cfg %s line %d: %w", fn, lineNum, err)
		}
	}
	if libInfo.Name != "" || len(libInfo.FnName) > 0 {
		cfgInfo.Libs = append(cfgInfo.Libs, libInfo)
	}
	return cfgInfo, nil
}
