package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/platinummonkey/idctl/pkg/identity"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

func outputFlag(fs *flag.FlagSet) *string {
	return fs.String("o", FormatTable, "Output format: table or json")
}

// render writes v as indented JSON, or calls table with a tabwriter
func (a *App) render(format string, v any, table func(w io.Writer)) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatTable, "":
		w := tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
		table(w)
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func row(w io.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func str(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

func orEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func servicesTable(services []identity.Service) func(io.Writer) {
	return func(w io.Writer) {
		row(w, "ID", "NAME", "ACTIVE", "URL", "PORT", "DESCRIPTION")
		for _, s := range services {
			port := "-"
			if s.Port != nil {
				port = strconv.Itoa(*s.Port)
			}
			row(w, s.ID, s.Name, yesNo(s.IsActive), str(s.URL), port, str(s.Description))
		}
	}
}

func rolesTable(roles []identity.Role) func(io.Writer) {
	return func(w io.Writer) {
		row(w, "ID", "NAME", "SERVICE", "DESCRIPTION")
		for _, r := range roles {
			row(w, r.ID, r.Name, r.ServiceID, r.Description)
		}
	}
}

func permissionsTable(perms []identity.Permission) func(io.Writer) {
	return func(w io.Writer) {
		row(w, "ID", "NAME", "RESOURCE", "ACTION", "DESCRIPTION")
		for _, p := range perms {
			row(w, p.ID, p.Name, p.Resource, p.Action, p.Description)
		}
	}
}

func usersTable(users []identity.UserProfile) func(io.Writer) {
	return func(w io.Writer) {
		row(w, "ID", "NAME", "EMAIL", "ACTIVE", "VERIFIED")
		for _, u := range users {
			row(w, u.ID, u.FullName(), u.Email, yesNo(u.IsActive), yesNo(u.IsVerified))
		}
	}
}
