package db

import (
	"database/sql"
	"errors"
	"os"
	"time"

	//sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/nickjhughes/go-wormhole/config"
	"github.com/nickjhughes/go-wormhole/log"
)

var db *sql.DB

//ErrNotOpen is returned when an operation needs the database but
//no connection is open
var ErrNotOpen = errors.New("database connection is not open")

//Initialize opens the SQLite usage store named in the loaded
//configuration. The store only holds usage records; all rendezvous
//state is in memory. Running without a DB file is fully supported,
//recording just becomes a no-op
func Initialize() error {
	if config.Opts == nil {
		panic("attempted to initialize database without a configuration loaded")
	}

	filename := config.Opts.Relay.DBFile
	if filename == "" {
		return nil
	}

	log.Info("initializing usage database")

	createSchema := false
	if _, err := os.Stat(filename); err != nil {
		log.Infof("creating database file %s", filename)
		createSchema = true
	}

	var err error
	db, err = sql.Open("sqlite3", filename)
	if err != nil {
		return err
	}
	log.Infof("database connection opened to file %s", filename)

	if createSchema {
		return CreateSchema()
	}

	//Check migration and return
	return CheckMigration()
}

//Close terminates and clears the database connection
func Close() {
	if db == nil {
		return
	}

	log.Info("closing database connection")
	db.Close()
	db = nil
}

//Get returns the current database connection, nil when usage
//recording is disabled
func Get() *sql.DB {
	return db
}

//CreateSchema sets up a new database schema for use
func CreateSchema() error {
	if db == nil {
		return ErrNotOpen
	}

	log.Info("setting up database schema")

	_, err := db.Exec(usageSchema)
	if err != nil {
		return err
	}

	//Set the schema version
	_, err = db.Exec(`INSERT INTO version (version) VALUES ($1)`, schemaVersion)
	if err != nil {
		return err
	}

	log.Infof("set schema version to %d", schemaVersion)
	return nil
}

//CheckMigration reads the database schema version and checks
//against the current version in this binary. If they do not
//match, will attempt to migrate the schema.
func CheckMigration() error {
	if db == nil {
		return ErrNotOpen
	}

	var cur int
	row := db.QueryRow(`SELECT version FROM version`)
	if err := row.Scan(&cur); err != nil {
		if err == sql.ErrNoRows {
			//Improperly setup
			return errors.New("could not find the schema version of the database, it may be corrupt")
		}
		return err
	}

	if cur > schemaVersion {
		return errors.New("database schema version is higher then the binaries target")
	}

	return nil
}

//RecordUsage writes one closed-mailbox record. Failures are logged
//and swallowed; usage records never interfere with the protocol
func RecordUsage(appID, mailboxID, side, mood string) {
	if db == nil {
		return
	}

	_, err := db.Exec(`INSERT INTO usage (app_id, mailbox_id, side, mood, closed)
		VALUES ($1, $2, $3, $4, $5)`, appID, mailboxID, side, mood, time.Now().Unix())
	if err != nil {
		log.Err("failed to record mailbox usage", err)
	}
}

//RecordNameplate writes one nameplate allocation record. Failures
//are logged and swallowed
func RecordNameplate(appID string, nameplate int) {
	if db == nil {
		return
	}

	_, err := db.Exec(`INSERT INTO nameplate_usage (app_id, nameplate, allocated)
		VALUES ($1, $2, $3)`, appID, nameplate, time.Now().Unix())
	if err != nil {
		log.Err("failed to record nameplate allocation", err)
	}
}

//MoodCount is one row of the stats summary
type MoodCount struct {
	Mood  string
	Count int
}

//Stats summarizes the recorded usage by mood
func Stats() ([]MoodCount, error) {
	if db == nil {
		return nil, ErrNotOpen
	}

	rows, err := db.Query(`SELECT mood, COUNT(*) FROM usage GROUP BY mood ORDER BY mood`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []MoodCount
	for rows.Next() {
		var mc MoodCount
		if err := rows.Scan(&mc.Mood, &mc.Count); err != nil {
			return nil, err
		}
		res = append(res, mc)
	}
	return res, rows.Err()
}
