// pdfbinder - merge every PDF in a directory into one document
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pdfbinder/pdfbinder/pkg/binder"
)

var (
	countOnly = flag.Bool("count", false, "count the PDF files that would be merged, without merging")
	printVer  = flag.Bool("v", false, "print version information")
	printHelp = flag.Bool("h", false, "print usage information")
)

func usage() {
	fmt.Fprintf(os.Stderr, "pdfbinder version 1.0.0\n")
	fmt.Fprintf(os.Stderr, "Usage: pdfbinder [options] <directory>\n\n")
	fmt.Fprintf(os.Stderr, "Merges every .pdf file in <directory>, ordered by modification time,\n")
	fmt.Fprintf(os.Stderr, "into <directory>.pdf next to it.\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *printHelp {
		usage()
		os.Exit(0)
	}
	if *printVer {
		fmt.Println("pdfbinder version 1.0.0")
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	dir := flag.Arg(0)

	if *countOnly {
		n, err := binder.CountCandidates(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d PDF files in %s\n", n, dir)
		return
	}

	result, err := binder.MergeDirectory(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Merged %d files (%d pages) into %s\n", result.Files, result.Pages, result.OutputPath)
}
