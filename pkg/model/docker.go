package model

// DockerMapping is a host port published by a running container.
type DockerMapping struct {
	Protocol      Protocol `json:"protocol"`
	HostIP        string   `json:"hostIp,omitempty"`
	HostPort      int      `json:"hostPort"`
	ContainerID   string   `json:"containerId"`
	ContainerName string   `json:"containerName"`
	Image         string   `json:"image"`
	ContainerPort int      `json:"containerPort"`
}

func (m DockerMapping) Key() PortKey {
	return PortKey{Protocol: m.Protocol, Port: m.HostPort}
}
