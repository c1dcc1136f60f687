package store

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS packages (
    user_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    flags INTEGER NOT NULL DEFAULT 0,
    first_install_time TIMESTAMP,
    launchable BOOLEAN NOT NULL DEFAULT 0,
    enabled BOOLEAN NOT NULL DEFAULT 1,
    permissions TEXT,
    PRIMARY KEY (user_id, name),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS usage_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    package TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    FOREIGN KEY (user_id, package) REFERENCES packages(user_id, name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS auto_revoked (
    user_id INTEGER NOT NULL,
    package TEXT NOT NULL,
    permission_group TEXT NOT NULL,
    revoked_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, package, permission_group),
    FOREIGN KEY (user_id, package) REFERENCES packages(user_id, name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    package TEXT NOT NULL,
    session_id TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_package ON usage_events(user_id, package);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_actions_timestamp ON actions(timestamp);
`
