package main

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/jyane/memscan/repl"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if err := repl.Run(os.Stdout, os.Stderr); err != nil {
		glog.Fatalln(err)
	}
}
