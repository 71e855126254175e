// Package glog sends clog output to github.com/golang/glog.
package glog

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/cayleygraph/catalog/clog"
)

func init() {
	clog.SetLogger(Logger{})
}

type Logger struct{}

func (Logger) Infof(format string, args ...interface{}) {
	glog.InfoDepth(3, fmt.Sprintf(format, args...))
}
func (Logger) Warningf(format string, args ...interface{}) {
	glog.WarningDepth(3, fmt.Sprintf(format, args...))
}
func (Logger) Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(3, fmt.Sprintf(format, args...))
}
func (Logger) Fatalf(format string, args ...interface{}) {
	glog.FatalDepth(3, fmt.Sprintf(format, args...))
}

// V reports if glog verbosity is at least level.
func (Logger) V(level int) bool {
	return bool(glog.V(glog.Level(level)))
}

// SetV mirrors the glog verbosity into clog, since glog levels can only be
// changed through its flags.
func SetV() {
	for l := 5; l > 0; l-- {
		if (Logger{}).V(l) {
			clog.SetV(l)
			return
		}
	}
}
