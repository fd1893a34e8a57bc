// Package schema has the models, enums and constants shared by all parts of repohealth.
package schema
