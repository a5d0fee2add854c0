package build

import "strings"

var (
	Version = "dev"
	AppName = "Tickwise"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
