package history

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    at                 DATETIME NOT NULL,
    policy_count       INTEGER NOT NULL DEFAULT 0,
    high_risk_count    INTEGER NOT NULL DEFAULT 0,
    unidentified_count INTEGER NOT NULL DEFAULT 0,
    fetch_ok           BOOLEAN NOT NULL DEFAULT 1,
    fetch_err          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS policies (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_id INTEGER NOT NULL REFERENCES snapshots(id),
    policy_id   INTEGER NOT NULL DEFAULT 0,
    app_name    TEXT NOT NULL DEFAULT '',
    protocol    TEXT NOT NULL DEFAULT '',
    port        INTEGER NOT NULL DEFAULT 0,
    action      TEXT NOT NULL DEFAULT '',
    badge       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_policies_snapshot ON policies(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_policies_trend ON policies(app_name);
`

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return nil
}
