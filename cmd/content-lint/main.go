package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"campusquest/contentfile"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"./content"}
	}

	exitCode := 0
	for _, target := range args {
		info, err := os.Stat(target)
		if err != nil {
			fmt.Printf("%s: %v\n", target, err)
			exitCode = 1
			continue
		}

		var problems []contentfile.Problem
		switch {
		case info.IsDir():
			_, problems, err = contentfile.LoadCardDir(target, "")
		case strings.EqualFold(filepath.Ext(target), ".json"):
			var b contentfile.Bundle
			b, err = contentfile.Load(target)
			if err == nil {
				problems = contentfile.Lint(b)
			}
		default:
			var f *os.File
			f, err = os.Open(target)
			if err == nil {
				_, problems, err = contentfile.ParseCards(target, f)
				f.Close()
			}
		}
		if err != nil {
			fmt.Printf("%s: %v\n", target, err)
			exitCode = 1
			continue
		}

		for _, p := range problems {
			fmt.Println(p)
		}
		if len(problems) == 0 {
			fmt.Printf("%s: OK\n", target)
		} else {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
