// Command quizdeck-seed validates and applies role catalog seed files.
//
// Usage:
//
//	quizdeck-seed validate -seed roles.yaml
//	quizdeck-seed show [-seed roles.yaml]
//	quizdeck-seed apply -server http://localhost:8080
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/quizdeck/quizdeck/pkg/rbac"
)

var log = logrus.New()

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "validate":
		err = runValidate(args)
	case "show":
		err = runShow(args)
	case "apply":
		err = runApply(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: quizdeck-seed <validate|show|apply> [flags]")
}

// runValidate parses a seed file and reports problems without touching
// anything.
func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	seedPath := fs.String("seed", "", "Path to the role catalog YAML")
	fs.Parse(args)

	if *seedPath == "" {
		return fmt.Errorf("validate requires -seed")
	}

	roles, err := rbac.LoadSeedFile(*seedPath)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"path":  *seedPath,
		"roles": len(roles),
	}).Info("Seed file is valid")
	return nil
}

// runShow prints the catalog a seed source would produce
func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	seedPath := fs.String("seed", "", "Path to the role catalog YAML (empty shows built-in defaults)")
	fs.Parse(args)

	var roles []*rbac.Role
	if *seedPath == "" {
		roles = rbac.DefaultRoles()
	} else {
		var err error
		roles, err = rbac.LoadSeedFile(*seedPath)
		if err != nil {
			return err
		}
	}

	for _, role := range roles {
		fmt.Printf("%s (%s)\n", role.ID, role.Name)
		if role.IsSystemRole {
			fmt.Println("  system role")
		}
		fmt.Printf("  permissions: %s\n", strings.Join(role.Permissions.Members(), ", "))
		fmt.Printf("  pages:       %s\n", strings.Join(role.Pages.Members(), ", "))
		fmt.Printf("  features:    %s\n", strings.Join(role.ComponentFeatures.Members(), ", "))
	}
	return nil
}

// runApply triggers a catalog reseed on a running server. The server
// reloads from its own configured seed source; this command just pulls
// the admin trigger.
func runApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "Base URL of the quizdeck server")
	userID := fs.String("user", "", "Acting user ID recorded in the audit trail")
	fs.Parse(args)

	url := strings.TrimRight(*server, "/") + "/api/v1/admin/roles/reseed"
	req, err := http.NewRequest("POST", url, nil)
	if err != nil {
		return err
	}
	if *userID != "" {
		req.Header.Set("X-User-ID", *userID)
		req.Header.Set("X-User-Role", "super_admin")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reseed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reseed failed with status %s", resp.Status)
	}

	log.WithField("server", *server).Info("Role catalog reseeded")
	return nil
}
