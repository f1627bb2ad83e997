package store

// Schema is applied on every open. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS packages (
	name TEXT PRIMARY KEY,
	category TEXT,
	section TEXT,
	pkg_section TEXT,
	version TEXT,
	release TEXT,
	description TEXT
);

CREATE TABLE IF NOT EXISTS upstreams (
	name TEXT PRIMARY KEY,
	type TEXT,
	url TEXT,
	branch TEXT
);

CREATE TABLE IF NOT EXISTS package_upstream (
	package TEXT PRIMARY KEY,
	upstream TEXT
);

CREATE TABLE IF NOT EXISTS upstream_subscription (
	id INTEGER PRIMARY KEY,
	upstream TEXT,
	type TEXT,
	category TEXT,
	url TEXT,
	last_update INTEGER NOT NULL DEFAULT 0
);

-- One subscription per (upstream, type, category, url) channel.
CREATE UNIQUE INDEX IF NOT EXISTS idx_subscription_key
	ON upstream_subscription (upstream, type, category, url);

-- url is the global dedup key; INSERT OR IGNORE makes commits idempotent.
CREATE TABLE IF NOT EXISTS upstream_update (
	upstream TEXT,
	category TEXT,
	time INTEGER,
	subscription INTEGER,
	title TEXT,
	content TEXT,
	url TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_update_time ON upstream_update (time);
CREATE INDEX IF NOT EXISTS idx_update_upstream ON upstream_update (upstream, category);

-- Conditional-fetch state per subscription, written in the same
-- transaction as the events it corresponds to.
CREATE TABLE IF NOT EXISTS subscription_cursor (
	subscription INTEGER PRIMARY KEY,
	validator TEXT,
	state TEXT
);

CREATE TABLE IF NOT EXISTS pakreq (
	package TEXT PRIMARY KEY,
	description TEXT,
	url TEXT,
	resolution TEXT
);
`
