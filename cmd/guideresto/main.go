package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/ammar0144/guideresto"
	"github.com/ammar0144/guideresto/pkg/config"
	"github.com/ammar0144/guideresto/pkg/model"

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	version string
	app     = kingpin.New("guideresto", "Restaurant guide persistence tool")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	configFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		ExistingFiles()

	migrateCmd = app.Command("migrate", "Create the guide tables if they do not exist")

	seedCmd      = app.Command("seed-criteria", "Create the evaluation criteria that are missing")
	seedCriteria = seedCmd.Arg(
		"criteria", "criteria as name or name:description").
		Strings()

	listCmd  = app.Command("restaurants", "List restaurants")
	listName = listCmd.Flag("name", "keep restaurants whose name contains this").String()
	listCity = listCmd.Flag("city", "keep restaurants whose city name contains this").String()
	listType = listCmd.Flag("type", "keep restaurants of the type with this label").String()
)

var defaultCriteria = []string{
	"Service:Qualité du service",
	"Cuisine:Qualité de la nourriture",
	"Cadre:L'ambiance et la décoration",
}

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := guideresto.LoadConfig(*configFiles...)
	if err != nil {
		log.WithError(err).Fatal("Cannot load config")
	}
	if *debug {
		cfg.Logging.Level = log.DebugLevel.String()
	}
	if err := config.SetupLogging(cfg.Logging); err != nil {
		log.WithError(err).Fatal("Cannot set up logging")
	}
	log.WithField("files", *configFiles).Debug("Loaded guideresto config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := guideresto.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Cannot open session")
	}

	switch cmd {
	case migrateCmd.FullCommand():
		err = session.Migrate(ctx)
	case seedCmd.FullCommand():
		err = seed(ctx, session, *seedCriteria)
	case listCmd.FullCommand():
		err = list(ctx, session, os.Stdout)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if cerr := session.Close(ctx); cerr != nil {
		log.WithError(cerr).Warn("Failed to close session")
	}
	if err != nil {
		log.WithError(err).WithField("command", cmd).Fatal("Command failed")
	}
}

func seed(ctx context.Context, s *guideresto.Session, entries []string) error {
	if len(entries) == 0 {
		entries = defaultCriteria
	}
	for _, entry := range entries {
		name, description, _ := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)

		existing, err := s.Criteria().FindByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			log.WithField("criteria", name).Debug("Criteria already present")
			continue
		}

		c, err := s.Evaluations.CreateCriteria(ctx, name, strings.TrimSpace(description))
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"criteria": c.Name, "id": c.ID}).Info("Criteria created")
	}
	return nil
}

func list(ctx context.Context, s *guideresto.Session, out io.Writer) error {
	var (
		restaurants []*model.Restaurant
		err         error
	)
	switch {
	case *listType != "":
		typ, terr := s.Restaurants.GetRestaurantTypeByLabel(ctx, *listType)
		if terr != nil {
			return terr
		}
		if typ == nil {
			return fmt.Errorf("no restaurant type labelled %q", *listType)
		}
		restaurants, err = s.Restaurants.GetRestaurantsByType(ctx, typ)
	case *listCity != "":
		restaurants, err = s.Restaurants.GetRestaurantsByCity(ctx, *listCity)
	case *listName != "":
		restaurants, err = s.Restaurants.GetRestaurantsByName(ctx, *listName)
	default:
		restaurants, err = s.Restaurants.GetAllRestaurants(ctx)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tADDRESS")
	for _, r := range restaurants {
		if !matches(r, *listName, *listCity) {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, label(r.Type), address(r.Address))
	}
	return w.Flush()
}

// matches applies the name and city filters not already used for the query
func matches(r *model.Restaurant, name, city string) bool {
	if name != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(name)) {
		return false
	}
	if city != "" && (r.City() == nil || !strings.Contains(strings.ToLower(r.City().Name), strings.ToLower(city))) {
		return false
	}
	return true
}

func label(t *model.RestaurantType) string {
	if t == nil {
		return "-"
	}
	return t.Label
}

func address(l model.Localisation) string {
	if l.City == nil {
		return l.Street
	}
	return fmt.Sprintf("%s, %s %s", l.Street, l.City.ZipCode, l.City.Name)
}
