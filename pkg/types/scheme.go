package types

// Scheme identifies a backend family. It is a closed tag, serializable
// to a static string, never derived from user input.
type Scheme string

const (
	SchemeMemory  Scheme = "memory"
	SchemeFS      Scheme = "fs"
	SchemeS3      Scheme = "s3"
	SchemeGCS     Scheme = "gcs"
	SchemeAzblob  Scheme = "azblob"
	SchemeHTTP    Scheme = "http"
	SchemeWebHDFS Scheme = "webhdfs"
	SchemeSFTP    Scheme = "sftp"
	SchemeTiKV    Scheme = "tikv"
)

func (s Scheme) String() string {
	return string(s)
}
