package runner

import "github.com/projectdiscovery/gologger"

const version = `v0.0.1`

var banner = `
        __                      __
  ___  / /__ ____ ___ ___  ____/ /  ___
 / -_)/ _  // _  / -_)_ \ / __/ _ \/ -_)
 \__/ \_,_/ \_, /\__/ .__//_/  \___/\__/
           /___/   /_/
`

// showBanner is used to show the banner to the user
func showBanner() {
	gologger.Print().Msgf("%s\n", banner)
	gologger.Print().Msgf("\t\tprojectdiscovery.io\n\n")
}
