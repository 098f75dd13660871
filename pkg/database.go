package ageing

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx"
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

type ReferenceChannelEntry struct {
	ModuleName  string `db:"ModuleName"`
	ChannelName string `db:"ChannelName"`
}

// getReferenceChannelsFromDB reads the per-module reference channel
// assignments valid for the given run from the conditions database.
func getReferenceChannelsFromDB(db *sqlx.DB, runNumber int) (map[string]string, error) {
	query := fmt.Sprintf(
		"SELECT ModuleName, ChannelName from ReferenceChannels WHERE MinRun <= %d and MaxRun >= %d",
		runNumber, runNumber)
	rows, err := db.Queryx(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[string]string)
	for rows.Next() {
		entry := ReferenceChannelEntry{}
		err := rows.StructScan(&entry)
		if err != nil {
			return nil, err
		}
		refs[entry.ModuleName] = entry.ChannelName
	}
	return refs, nil
}

// LoadConditions fetches the run conditions and merges them into the
// configuration snapshot, returning the updated copy. Reference channels
// given explicitly in the configuration win over the database.
func LoadConditions(db *sqlx.DB, config Configuration) (Configuration, error) {
	refs, err := getReferenceChannelsFromDB(db, config.RunNumber)
	if err != nil {
		errMessage := fmt.Errorf("error getting reference channels from database: %w", err)
		logger.Error(errMessage.Error())
		return config, err
	}
	merged := make(map[string]string, len(refs))
	for module, channel := range refs {
		merged[module] = channel
	}
	for module, channel := range config.RefChannels {
		merged[module] = channel
	}
	config.RefChannels = merged
	if config.Verbosity > 0 {
		message := fmt.Sprintf("Loaded %d reference channel assignments for run %d", len(refs), config.RunNumber)
		logger.Info(message, "database")
	}
	return config, nil
}
