package banner

import "fmt"

const banner = `
██████╗ ███████╗████████╗██████╗  ██████╗ ██╗      ██████╗  ██████╗
██╔══██╗██╔════╝╚══██╔══╝██╔══██╗██╔═══██╗██║     ██╔═══██╗██╔════╝
██████╔╝█████╗     ██║   ██████╔╝██║   ██║██║     ██║   ██║██║  ███╗
██╔══██╗██╔══╝     ██║   ██╔══██╗██║   ██║██║     ██║   ██║██║   ██║
██║  ██║███████╗   ██║   ██║  ██║╚██████╔╝███████╗╚██████╔╝╚██████╔╝
╚═╝  ╚═╝╚══════╝   ╚═╝   ╚═╝  ╚═╝ ╚═════╝ ╚══════╝ ╚═════╝  ╚═════╝
`

// Print writes the startup banner and a short operator summary.
func Print(addr, mode, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("Remote:   %s\n", mode)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/feed?sort=best|newest|oldest&tag=<t>&q=<query>")
	fmt.Println("GET  /v1/tags/popular")
	fmt.Println("POST /v1/messages - send (JSON: title, content, parent_id, tags, media)")
	fmt.Println("POST /v1/messages/{id}/votes - toggle vote (JSON: weight)")
	fmt.Println("DELETE /v1/messages/{id} - delete own message (admin: any)")
	fmt.Println("POST /v1/blocks/{sender} - hide a sender locally (?global=1 admin)")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://%s/v1/feed?sort=best'\n", addr)
	fmt.Printf("curl -X POST 'http://%s/v1/messages' -d '{\"content\":\"hello #news\"}'\n", addr)
}
