// Package prompts holds the resume data and the per-origin system prompts
// for the chat endpoints. Content only; no behavior beyond string assembly.
package prompts

// ResumeData is the structured resume served by the resume endpoint and
// folded into every system prompt.
type ResumeData struct {
	Name    string `json:"name"`
	Contact struct {
		Location string `json:"location"`
		Email    string `json:"email"`
	} `json:"contact"`
	Summary string `json:"summary"`
	Skills  struct {
		Frontend string `json:"frontend"`
		Backend  string `json:"backend"`
		DevOps   string `json:"devops"`
		AI       string `json:"ai"`
	} `json:"skills"`
	Projects   []ResumeProject    `json:"projects"`
	Experience []ResumeExperience `json:"experience"`
	Education  []ResumeEducation  `json:"education"`
}

type ResumeProject struct {
	Title   string   `json:"title"`
	Period  string   `json:"period"`
	Details []string `json:"details"`
}

type ResumeExperience struct {
	Title   string   `json:"title"`
	Company string   `json:"company"`
	Period  string   `json:"period"`
	Details []string `json:"details"`
}

type ResumeEducation struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}

// Resume is the canonical resume content.
var Resume = func() ResumeData {
	var r ResumeData
	r.Name = "JONATHAN MADDISON"
	r.Contact.Location = "Burlington, VT"
	r.Contact.Email = "jonathanwm84@gmail.com"
	r.Summary = "Staff-level engineer specializing in scalable front-end systems and AI integration. " +
		"Expert in React/React Native, microservices architecture, and cloud deployment. " +
		"Track record of leading teams, mentoring developers, and delivering complex architectural changes while maintaining velocity."
	r.Skills.Frontend = "React, TypeScript, Next.js, React Query, Redux, Module Federation, Webpack, Vite, Tailwind CSS, React Native, Expo, Native Modules, App Store Deployment, Mobile CI/CD"
	r.Skills.Backend = "Node.js, Nest.js, Go, PostgreSQL, Event-Driven Architecture, Domain-Driven Design"
	r.Skills.DevOps = "AWS (Lambda, ECS, CloudFormation), Docker, GitLab/Github CI/CD, Monitoring"
	r.Skills.AI = "OpenAI APIs, Local LLM Integration (llama.cpp), RAG Systems, Tool Calling, AI Enhanced Development"
	r.Projects = []ResumeProject{
		{
			Title:  "Advanced AI Integration Projects",
			Period: "2024 - Present",
			Details: []string{
				"Built React Native app integrating billion-parameter LLMs (Llama 3.2) locally on iOS devices",
				"Implemented RAG systems for semantic search and data analysis in government transcripts",
				"Developed AI-powered meal planning application with intelligent recipe generation",
			},
		},
	}
	r.Experience = []ResumeExperience{
		{
			Title: "Staff Frontend Engineer", Company: "Paige", Period: "2024",
			Details: []string{
				"Led team building AI-integrated digital pathology viewer in regulated medical environment",
				"Spearheaded microfrontend architecture, reducing release complexity while maintaining compliance",
				"Successfully launched product securing major partnerships",
			},
		},
		{
			Title: "Senior Frontend Engineer", Company: "Paige", Period: "2021 - 2023",
			Details: []string{
				"Led feature development and performance improvements for digital pathology case management tool",
				"Architected frontend tagging system across case management and pathology viewer applications",
			},
		},
		{
			Title: "Senior Software Engineer", Company: "Grasshopper Bank", Period: "Mar 2021 - Oct 2021",
			Details: []string{
				"Led migration to microservices architecture with Nest.js, AWS Lambda, and event-driven patterns",
				"Implemented authorization service with flexible role mapping for banking requirements",
			},
		},
		{
			Title: "Software Engineer", Company: "Grasshopper Bank", Period: "2018 - 2021",
			Details: []string{
				"Added essential features to bank onboarding and mobile application with React/React Native and Node.js",
				"Developed custom Native Modules enabling critical mobile functionality",
				"Led implementation of unified web/mobile deployment strategy",
			},
		},
		{
			Title: "Software Engineer", Company: "OTTO Health", Period: "2017 - 2018",
			Details: []string{
				"Led transition from Cordova to React Native for mobile applications",
				"Improved release process and reduced bugs in critical user flows",
			},
		},
	}
	r.Education = []ResumeEducation{
		{Degree: "Master of Public Administration", Institution: "University of Vermont", Year: "2011"},
		{Degree: "B.S. Community and International Development", Institution: "University of Vermont", Year: "2009"},
	}
	return r
}()
