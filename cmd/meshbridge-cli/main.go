package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/unicornultrafoundation/meshbridge/internal/identity"
	"github.com/unicornultrafoundation/meshbridge/internal/protocol"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	os.Args = append(os.Args[:1], os.Args[2:]...)

	switch cmd {
	case "identity":
		cmdIdentity()
	case "clouds":
		cmdClouds()
	case "members":
		cmdMembers()
	case "join":
		cmdJoin()
	case "peers":
		cmdPeers()
	case "version":
		fmt.Printf("meshbridge-cli %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: meshbridge-cli <command> [options]

Commands:
  identity    Show or generate node identity
  clouds      List/create/delete clouds
  members     List/authorize/remove cloud members
  join        Request to join a cloud (awaits admin authorization)
  peers       List connected peers
  version     Show version
  help        Show this help`)
}

// --- Identity command ---

func cmdIdentity() {
	fs := flag.NewFlagSet("identity", flag.ExitOnError)
	path := fs.String("identity", "/etc/meshbridge/identity.key", "identity key path")
	generate := fs.Bool("generate", false, "generate new identity")
	fs.Parse(os.Args[1:])

	if *generate {
		id, err := identity.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Address:    %s\n", id.Address)
		fmt.Printf("Public Key: %s\n", id.PublicKeyHex())
		return
	}

	id, err := identity.LoadOrGenerate(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address:    %s\n", id.Address)
	fmt.Printf("Public Key: %s\n", id.PublicKeyHex())
}

// --- Clouds command ---

func cmdClouds() {
	fs := flag.NewFlagSet("clouds", flag.ExitOnError)
	controller := fs.String("controller", "http://localhost:9394", "controller URL")
	token := fs.String("token", "", "JWT auth token")
	create := fs.String("create", "", "create cloud with name")
	mtu := fs.Int("mtu", 1500, "MTU for new cloud")
	del := fs.String("delete", "", "delete cloud by ID")
	fs.Parse(os.Args[1:])

	client := &apiClient{base: *controller, token: *token}

	if *create != "" {
		body := protocol.CreateCloudRequest{
			Name: *create,
			MTU:  *mtu,
		}
		var result protocol.CreateCloudResponse
		if err := client.post("/api/v1/clouds", body, &result); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created cloud: %d (%s)\n", result.Cloud.ID, result.Cloud.Name)
		fmt.Printf("Admission token: %s\n", result.Token)
		fmt.Println("This token is shown once; distribute it to nodes joining this cloud.")
		return
	}

	if *del != "" {
		if err := client.delete("/api/v1/clouds/" + *del); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Cloud deleted")
		return
	}

	var clouds []protocol.Cloud
	if err := client.get("/api/v1/clouds", &clouds); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMTU\tMEMBERS\tONLINE")
	for _, c := range clouds {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n", c.ID, c.Name, c.MTU, c.MemberCount, c.OnlineCount)
	}
	w.Flush()
}

// --- Members command ---

func cmdMembers() {
	fs := flag.NewFlagSet("members", flag.ExitOnError)
	controller := fs.String("controller", "http://localhost:9394", "controller URL")
	token := fs.String("token", "", "JWT auth token")
	cloudID := fs.String("cloud", "", "cloud ID")
	authorize := fs.String("authorize", "", "node address to authorize")
	remove := fs.String("remove", "", "node address to remove")
	name := fs.String("name", "", "display name to set when authorizing")
	fs.Parse(os.Args[1:])

	if *cloudID == "" {
		fmt.Fprintln(os.Stderr, "error: --cloud is required")
		os.Exit(1)
	}

	client := &apiClient{base: *controller, token: *token}

	if *authorize != "" {
		body := protocol.AuthorizeMemberRequest{
			NodeAddress: *authorize,
			Authorized:  true,
			Name:        *name,
		}
		var result protocol.Member
		if err := client.post("/api/v1/clouds/"+*cloudID+"/members", body, &result); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Authorized: %s\n", result.NodeAddress)
		return
	}

	if *remove != "" {
		if err := client.delete("/api/v1/clouds/" + *cloudID + "/members/" + *remove); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Member removed")
		return
	}

	var members []protocol.Member
	if err := client.get("/api/v1/clouds/"+*cloudID+"/members", &members); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tAUTHORIZED\tONLINE\tPLATFORM\tLAST SEEN")
	for _, m := range members {
		lastSeen := "-"
		if !m.LastSeen.IsZero() {
			lastSeen = m.LastSeen.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%v\t%v\t%s\t%s\n",
			m.NodeAddress, m.Authorized, m.Online, m.Platform, lastSeen)
	}
	w.Flush()
}

// --- Join command ---

func cmdJoin() {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	controller := fs.String("controller", "http://localhost:9394", "controller URL")
	token := fs.String("token", "", "JWT auth token")
	cloudID := fs.String("cloud", "", "cloud ID to join")
	identityPath := fs.String("identity", "/etc/meshbridge/identity.key", "identity key path")
	fs.Parse(os.Args[1:])

	if *cloudID == "" {
		fmt.Fprintln(os.Stderr, "error: --cloud is required")
		os.Exit(1)
	}

	id, err := identity.LoadOrGenerate(*identityPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading identity: %v\n", err)
		os.Exit(1)
	}

	client := &apiClient{base: *controller, token: *token}
	body := protocol.AuthorizeMemberRequest{
		NodeAddress: id.Address.String(),
		Authorized:  false, // needs admin approval
	}
	var result protocol.Member
	if err := client.post("/api/v1/clouds/"+*cloudID+"/members", body, &result); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Join request sent for cloud %s\n", *cloudID)
	fmt.Printf("Node address: %s\n", id.Address)
	fmt.Println("Status: waiting for admin authorization")
}

// --- Peers command ---

func cmdPeers() {
	fs := flag.NewFlagSet("peers", flag.ExitOnError)
	controller := fs.String("controller", "http://localhost:9394", "controller URL")
	token := fs.String("token", "", "JWT auth token")
	fs.Parse(os.Args[1:])

	client := &apiClient{base: *controller, token: *token}

	var peers []json.RawMessage
	if err := client.get("/api/v1/peers", &peers); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tPLATFORM\tONLINE\tLAST SEEN")
	for _, raw := range peers {
		var p struct {
			Address  string    `json:"address"`
			Platform string    `json:"platform"`
			Online   bool      `json:"online"`
			LastSeen time.Time `json:"last_seen"`
		}
		json.Unmarshal(raw, &p)
		lastSeen := "-"
		if !p.LastSeen.IsZero() {
			lastSeen = p.LastSeen.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", p.Address, p.Platform, p.Online, lastSeen)
	}
	w.Flush()
}

// --- HTTP client helper ---

type apiClient struct {
	base  string
	token string
}

func (c *apiClient) get(path string, out interface{}) error {
	req, err := http.NewRequest("GET", c.base+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) post(path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *apiClient) delete(path string) error {
	req, err := http.NewRequest("DELETE", c.base+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
