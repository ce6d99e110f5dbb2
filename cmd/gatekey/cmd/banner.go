package cmd

import (
	"fmt"
)

const banner = `
   _____       _       _  __
  / ____|     | |     | |/ /
 | |  __  __ _| |_ ___| ' / ___ _   _
 | | |_ |/ _` + "`" + ` | __/ _ \  < / _ \ | | |
 | |__| | (_| | ||  __/ . \  __/ |_| |
  \_____|\__,_|\__\___|_|\_\___|\__, |
                                 __/ |
                                |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Client Credential Engine - Version %s\x1b[0m\n\n", Version)
}
