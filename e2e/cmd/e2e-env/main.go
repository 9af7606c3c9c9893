package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
)

func main() {
	defaults := config.DefaultDotEnv()
	path := flag.String("file", ".env", "path of the .env file to create")
	force := flag.Bool("force", false, "overwrite an existing file")
	flag.StringVar(&defaults.Host, "host", defaults.Host, "store compose service name")
	flag.IntVar(&defaults.Port, "port", defaults.Port, "store port")
	flag.StringVar(&defaults.Dataset, "dataset", defaults.Dataset, "dataset name")
	flag.StringVar(&defaults.Password, "password", "", "admin password (generated when empty)")
	flag.Parse()

	written, err := config.WriteDotEnv(*path, defaults, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !written {
		fmt.Printf("%s exists, leaving it unchanged\n", *path)
		return
	}
	fmt.Printf("wrote %s\n", *path)
}
