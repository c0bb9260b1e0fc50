package cmd

import (
	"log/slog"

	"github.com/loadbridge/loadbridge/pkg/models"
	"github.com/loadbridge/loadbridge/pkg/protocol"
	"github.com/loadbridge/loadbridge/pkg/registry"
	"github.com/loadbridge/loadbridge/pkg/steps/aidecision"
	"github.com/loadbridge/loadbridge/pkg/steps/apicall"
	"github.com/loadbridge/loadbridge/pkg/steps/apiendpoint"
	"github.com/loadbridge/loadbridge/pkg/steps/conditional"
	"github.com/loadbridge/loadbridge/pkg/steps/emailaction"
	"github.com/loadbridge/loadbridge/pkg/steps/imaging"
	"github.com/loadbridge/loadbridge/pkg/steps/multipart"
	"github.com/loadbridge/loadbridge/pkg/steps/reademail"
	"github.com/loadbridge/loadbridge/pkg/steps/renamefile"
	"github.com/loadbridge/loadbridge/pkg/steps/sftpupload"
)

// Collaborators bundles the external services the step factories depend on.
type Collaborators struct {
	APIProfiles   map[string]models.APIProfile
	EmailProfiles map[string]models.EmailProfile
	AI            protocol.AIClient
	Documents     protocol.DocumentStore
	Mail          protocol.MailSender
	Transfer      protocol.FileTransfer
}

// NewRegistry builds a step registry with every step kind registered.
func NewRegistry(logger *slog.Logger, c Collaborators) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterStep(apicall.NewFactory())
	reg.RegisterStep(apiendpoint.NewFactory(c.APIProfiles))
	reg.RegisterStep(conditional.NewFactory())
	reg.RegisterStep(renamefile.NewFactory())
	reg.RegisterStep(multipart.NewFactory())
	reg.RegisterStep(aidecision.NewFactory(c.APIProfiles, c.AI))
	reg.RegisterStep(reademail.NewFactory(c.AI))
	reg.RegisterStep(emailaction.NewFactory(c.Mail))
	reg.RegisterStep(imaging.NewFactory(c.Documents))
	reg.RegisterStep(sftpupload.NewFactory(c.Transfer))

	return reg
}
