package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicholsn/opencga/internal/common"
)

// aclSegments maps the CLI entity names onto the REST path segments.
var aclSegments = map[string]string{
	"study":  "studies",
	"job":    "jobs",
	"file":   "files",
	"sample": "samples",
	"cohort": "cohorts",
}

func newRootCmd() *cobra.Command {
	var sessionFile string
	var overrideURL string
	var overrideUser string

	root := &cobra.Command{
		Use:           "opencga",
		Short:         "Command line client for the OpenCGA catalog daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&sessionFile, "session-file", "", "Path to the session file (default ~/.opencga/session.json)")
	root.PersistentFlags().StringVar(&overrideURL, "url", "", "Catalog daemon base URL, overrides the session")
	root.PersistentFlags().StringVar(&overrideUser, "user", "", "Acting user, overrides the session")

	// connect resolves the effective session, letting flags override the
	// stored one. With both flags set no session file is needed.
	connect := func() (*client, error) {
		if overrideURL != "" && overrideUser != "" {
			return newClient(Session{URL: overrideURL, User: overrideUser}), nil
		}
		session, err := newSessionStore(sessionFile).Load()
		if err != nil {
			return nil, err
		}
		if overrideURL != "" {
			session.URL = overrideURL
		}
		if overrideUser != "" {
			session.User = overrideUser
		}
		return newClient(session), nil
	}

	root.AddCommand(newLoginCmd(&sessionFile))
	root.AddCommand(newLogoutCmd(&sessionFile))
	root.AddCommand(newJobsCmd(connect))
	root.AddCommand(newFilesCmd(connect))
	root.AddCommand(newSamplesCmd(connect))
	root.AddCommand(newStudiesCmd(connect))
	root.AddCommand(newUsersCmd(connect))
	root.AddCommand(newProjectsCmd(connect))
	root.AddCommand(newAclCmd(connect))
	return root
}

func newLoginCmd(sessionFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login <url> <user>",
		Short: "Store the daemon URL and acting user for later invocations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := url.ParseRequestURI(args[0]); err != nil {
				return common.NewErrInvalidArgument("'%s' is not a valid URL", args[0])
			}
			store := newSessionStore(*sessionFile)
			if err := store.Save(Session{URL: strings.TrimRight(args[0], "/"), User: args[1]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", args[1])
			return nil
		},
	}
}

func newLogoutCmd(sessionFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newSessionStore(*sessionFile).Clear()
		},
	}
}

func newJobsCmd(connect func() (*client, error)) *cobra.Command {
	jobs := &cobra.Command{Use: "jobs", Short: "Inspect catalog jobs"}

	var silent bool
	info := &cobra.Command{
		Use:   "info <id[,id...]>",
		Short: "Fetch one or more jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/jobs/%s/info", args[0])
			if silent {
				path += "?silent=true"
			}
			resp, err := c.get(path)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	info.Flags().BoolVar(&silent, "silent", false, "Report per-id failures instead of aborting")

	var study, name, tool, status string
	search := &cobra.Command{
		Use:   "search",
		Short: "Search jobs in a study",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			query := url.Values{}
			query.Set("studyId", study)
			if name != "" {
				query.Set("name", name)
			}
			if tool != "" {
				query.Set("toolName", tool)
			}
			if status != "" {
				query.Set("status", status)
			}
			resp, err := c.get("/jobs/search?" + query.Encode())
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	search.Flags().StringVar(&study, "study", "", "Study reference (id, alias or user@project:study)")
	search.Flags().StringVar(&name, "name", "", "Filter by job name")
	search.Flags().StringVar(&tool, "tool", "", "Filter by tool name")
	search.Flags().StringVar(&status, "status", "", "Filter by execution status")
	_ = search.MarkFlagRequired("study")

	visit := &cobra.Command{
		Use:   "visit <id>",
		Short: "Mark a job as visited",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get(fmt.Sprintf("/jobs/%s/visit", args[0]))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Reconcile a job against the batch scheduler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get(fmt.Sprintf("/jobs/%s/status", args[0]))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	jobs.AddCommand(info, search, visit, statusCmd)
	return jobs
}

func newUsersCmd(connect func() (*client, error)) *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Inspect catalog user accounts"}

	info := &cobra.Command{
		Use:   "info <userId>",
		Short: "Fetch a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get(fmt.Sprintf("/users/%s/info", args[0]))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	users.AddCommand(info)
	return users
}

func newProjectsCmd(connect func() (*client, error)) *cobra.Command {
	projects := &cobra.Command{Use: "projects", Short: "Inspect catalog projects"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the projects visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get("/projects/search")
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	projects.AddCommand(list)
	return projects
}

func newFilesCmd(connect func() (*client, error)) *cobra.Command {
	files := &cobra.Command{Use: "files", Short: "Inspect catalog files"}
	files.AddCommand(newInfoCmd(connect, "files"))
	return files
}

func newSamplesCmd(connect func() (*client, error)) *cobra.Command {
	samples := &cobra.Command{Use: "samples", Short: "Inspect catalog samples"}
	samples.AddCommand(newInfoCmd(connect, "samples"))
	return samples
}

// newInfoCmd builds the shared bulk info subcommand for a path segment.
func newInfoCmd(connect func() (*client, error), segment string) *cobra.Command {
	var silent bool
	cmd := &cobra.Command{
		Use:   "info <id[,id...]>",
		Short: "Fetch one or more entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			path := fmt.Sprintf("/%s/%s/info", segment, args[0])
			if silent {
				path += "?silent=true"
			}
			resp, err := c.get(path)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().BoolVar(&silent, "silent", false, "Report per-id failures instead of aborting")
	return cmd
}

func newStudiesCmd(connect func() (*client, error)) *cobra.Command {
	studies := &cobra.Command{Use: "studies", Short: "Inspect catalog studies"}

	info := &cobra.Command{
		Use:   "info <study>",
		Short: "Fetch a study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get(fmt.Sprintf("/studies/%s/info", args[0]))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	groups := &cobra.Command{
		Use:   "groups <study>",
		Short: "List the groups of a study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get(fmt.Sprintf("/studies/%s/groups", args[0]))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	studies.AddCommand(info, groups)
	return studies
}

func newAclCmd(connect func() (*client, error)) *cobra.Command {
	acl := &cobra.Command{
		Use:   "acl",
		Short: "Manage access control lists",
	}

	segment := func(kind string) (string, error) {
		s, ok := aclSegments[kind]
		if !ok {
			return "", common.NewErrInvalidArgument("unknown entity kind '%s'", kind)
		}
		return s, nil
	}

	var members, permissions []string
	var template string
	create := &cobra.Command{
		Use:   "create <kind> <id>",
		Short: "Grant members permissions on an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seg, err := segment(args[0])
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.post(fmt.Sprintf("/%s/%s/acl/create", seg, args[1]), map[string]any{
				"members":     members,
				"permissions": permissions,
				"template":    template,
			})
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	create.Flags().StringSliceVar(&members, "members", nil, "Members to grant (user, @group, * or anonymous)")
	create.Flags().StringSliceVar(&permissions, "permissions", nil, "Permissions to grant")
	create.Flags().StringVar(&template, "template", "", "Study permission template (admin, analyst, locked)")
	_ = create.MarkFlagRequired("members")

	list := &cobra.Command{
		Use:   "list <kind> <id>",
		Short: "List every ACL entry on an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seg, err := segment(args[0])
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get(fmt.Sprintf("/%s/%s/acl", seg, args[1]))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	info := &cobra.Command{
		Use:   "info <kind> <id> <member>",
		Short: "Show one member's ACL entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			seg, err := segment(args[0])
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get(fmt.Sprintf("/%s/%s/acl/%s/info", seg, args[1], args[2]))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	var set, add, remove []string
	update := &cobra.Command{
		Use:   "update <kind> <id> <member>",
		Short: "Amend or replace a member's permission set",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			seg, err := segment(args[0])
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.post(fmt.Sprintf("/%s/%s/acl/%s/update", seg, args[1], args[2]), map[string]any{
				"set":    set,
				"add":    add,
				"remove": remove,
			})
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	update.Flags().StringSliceVar(&set, "set", nil, "Replace the permission set")
	update.Flags().StringSliceVar(&add, "add", nil, "Permissions to add")
	update.Flags().StringSliceVar(&remove, "remove", nil, "Permissions to remove")

	del := &cobra.Command{
		Use:   "delete <kind> <id> <member>",
		Short: "Remove a member's ACL entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			seg, err := segment(args[0])
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			resp, err := c.get(fmt.Sprintf("/%s/%s/acl/%s/delete", seg, args[1], args[2]))
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}

	acl.AddCommand(create, list, info, update, del)
	return acl
}
