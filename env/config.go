package env

// Config defines parameters to create environment builder
type Config struct {
	TmpRoot            string
	TmpFsParam         string
	MountConf          string
	SeccompConf        string
	CgroupPrefix       string
	ContainerCredStart int
	NoFallback         bool
}
