package main

import (
	"context"
	"strings"
	"time"

	"github.com/andstatus/fedsync/connection"
	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/domain"
	"github.com/andstatus/fedsync/identity"
	"github.com/andstatus/fedsync/merge"
	"github.com/andstatus/fedsync/util"
	"github.com/andstatus/fedsync/worker"
	"github.com/goware/urlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const actorCacheTTL = time.Hour

// app is what every command works with: configuration, storage and the
// worker with all configured accounts.
type app struct {
	conf   *util.AppConfig
	db     *db.DB
	worker *worker.Worker
}

func newApp(ctx context.Context) (*app, error) {
	conf, err := util.ReadConfFile(configFile)
	if err != nil {
		return nil, err
	}
	if conf.Conf.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Infof("Starting %s", util.GetNameAndVersion())
	log.Debugf("Configuration: %s", util.PrettyPrint(conf))

	database, err := db.GetDB(util.ResolveFilePath(conf.Conf.Database))
	if err != nil {
		return nil, err
	}

	for name := range conf.Conf.Notifications {
		if domain.ParseNotificationEventType(name).IsEmpty() {
			log.Warnf("Ignoring unknown notification type %q in config", name)
		}
	}
	updater := merge.NewUpdater(database, identity.NewUsers(), identity.NewCache(actorCacheTTL),
		merge.WithNotificationChecker(func(e domain.NotificationEventType) bool {
			return conf.NotificationEnabled(e.String())
		}))
	a := &app{conf: conf, db: database, worker: worker.New(database, updater, conf.Conf.PageLimit)}

	origins := make(map[string]*domain.Origin)
	for i := range conf.Accounts {
		ac := &conf.Accounts[i]
		origin, err := a.origin(origins, ac)
		if err != nil {
			return nil, err
		}
		if err := a.addAccount(ctx, origin, ac); err != nil {
			return nil, errors.Wrapf(err, "account %s@%s", ac.Username, origin.Name)
		}
	}
	return a, nil
}

// origin returns the origin an account belongs to. Accounts naming the same
// origin share it; ids are assigned in configuration order.
func (a *app) origin(origins map[string]*domain.Origin, ac *util.AccountConf) (*domain.Origin, error) {
	u, err := urlx.Parse(ac.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "origin url %q", ac.URL)
	}
	name := ac.Origin
	if name == "" {
		name = u.Hostname()
	}
	if o, ok := origins[name]; ok {
		return o, nil
	}
	t := domain.ParseOriginType(ac.Type)
	if t == domain.OriginUnknown {
		return nil, errors.Errorf("origin %s: unknown type %q", name, ac.Type)
	}
	o := &domain.Origin{
		ID:                 int64(len(origins) + 1),
		Name:               name,
		Type:               t,
		Host:               strings.ToLower(u.Hostname()),
		URL:                u.String(),
		HTMLContentAllowed: ac.HTMLContent,
	}
	origins[name] = o
	a.db.RegisterOrigin(o)
	return o, nil
}

func (a *app) addAccount(ctx context.Context, origin *domain.Origin, ac *util.AccountConf) error {
	opts := []connection.TransportOption{
		connection.WithRateLimit(a.conf.Conf.RequestsPerSecond, 1),
		connection.WithUserAgent(util.UserAgent()),
	}
	switch {
	case ac.Token != "":
		opts = append(opts, connection.WithAuthorizer(connection.BearerToken(ac.Token)))
	case ac.Password != "":
		opts = append(opts, connection.WithAuthorizer(connection.BasicAuth{Username: ac.Username, Password: ac.Password}))
	}

	account := domain.NewActor(origin, ac.OID)
	account.SetUsername(ac.Username)
	conn, err := connection.New(origin, account, connection.NewHTTPTransport(opts...))
	if err != nil {
		return err
	}
	if !account.IsOidReal() && conn.IsAPISupported(connection.VerifyCredentials) {
		verified, err := conn.VerifyCredentials(ctx)
		if err != nil {
			return errors.Wrap(err, "verify credentials")
		}
		account.OID = verified.OID
		if verified.Username() != "" {
			account.SetUsername(verified.Username())
		}
		log.Infof("Verified account %s with oid %s", account.NamesString(), account.OID)
	}

	var routines []connection.ApiRoutine
	for _, name := range ac.Timelines {
		r := connection.ParseRoutine(name)
		if r == connection.RoutineUnknown {
			r = connection.ParseRoutine(name + "_timeline")
		}
		if !r.IsTimeline() {
			return errors.Errorf("%q is not a timeline", name)
		}
		routines = append(routines, r)
	}
	_, err = a.worker.AddAccount(ctx, conn, routines...)
	return err
}

// accountID picks the account a command acts for: the given id, or the
// first configured account.
func (a *app) accountID(id int64) (int64, error) {
	if id != 0 {
		if a.worker.Account(id) == nil {
			return 0, errors.Errorf("unknown account %d", id)
		}
		return id, nil
	}
	accounts := a.worker.Accounts()
	if len(accounts) == 0 {
		return 0, errors.New("no accounts configured")
	}
	return accounts[0].ID(), nil
}
